// Package config loads d1meta settings from a YAML file with environment
// variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/koustreak/d1meta/internal/database"
	"github.com/koustreak/d1meta/internal/filestore"
	"github.com/koustreak/d1meta/internal/logger"
	"github.com/koustreak/d1meta/internal/snapshot"
)

// Config holds all configuration for d1meta.
// Environment variables always override YAML values for fields that support both.
// Secrets (API token, storage secret key) must only come from environment variables.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Schema   SchemaConfig   `yaml:"schema"`
	Server   ServerConfig   `yaml:"server"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatabaseConfig selects the executor. "sqlite" reads a local file through DSN;
// "d1" forwards the three credential fields to a registered remote transport.
type DatabaseConfig struct {
	Driver     string `yaml:"driver" env:"D1_DRIVER" env-default:"sqlite"`
	Name       string `yaml:"name" env:"D1_DATABASE_NAME" env-default:"default"` // label used in snapshots
	DSN        string `yaml:"dsn" env:"D1_DSN" env-default:"file:d1meta.db?mode=ro"`
	AccountID  string `yaml:"account_id" env:"D1_ACCOUNT_ID"`
	DatabaseID string `yaml:"database_id" env:"D1_DATABASE_ID"`
	APIToken   string `yaml:"-" env:"D1_API_TOKEN"` // Secret - not in YAML

	MaxConns        int           `yaml:"max_conns" env:"D1_MAX_CONNS" env-default:"4"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"D1_MAX_CONN_LIFETIME" env-default:"30m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"D1_CONNECT_TIMEOUT" env-default:"10s"`
	QueryTimeout    time.Duration `yaml:"query_timeout" env:"D1_QUERY_TIMEOUT" env-default:"30s"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"CACHE_ENABLED" env-default:"true"`
	TTL     time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"` // 0 keeps entries until invalidated
}

type SchemaConfig struct {
	// GroupForeignKeys merges composite foreign key rows into one descriptor.
	GroupForeignKeys bool `yaml:"group_foreign_keys" env:"SCHEMA_GROUP_FOREIGN_KEYS" env-default:"false"`
	Parallelism      int  `yaml:"parallelism" env:"SCHEMA_PARALLELISM" env-default:"4"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// SnapshotConfig enables snapshot export. An empty Provider disables it.
type SnapshotConfig struct {
	Provider   string        `yaml:"provider" env:"SNAPSHOT_PROVIDER"` // "minio", "memory" or ""
	Endpoint   string        `yaml:"endpoint" env:"SNAPSHOT_ENDPOINT" env-default:"localhost:9000"`
	AccessKey  string        `yaml:"access_key" env:"SNAPSHOT_ACCESS_KEY"`
	SecretKey  string        `yaml:"-" env:"SNAPSHOT_SECRET_KEY"` // Secret - not in YAML
	UseSSL     bool          `yaml:"use_ssl" env:"SNAPSHOT_USE_SSL" env-default:"false"`
	Region     string        `yaml:"region" env:"SNAPSHOT_REGION"`
	Bucket     string        `yaml:"bucket" env:"SNAPSHOT_BUCKET" env-default:"d1meta"`
	Prefix     string        `yaml:"prefix" env:"SNAPSHOT_PREFIX" env-default:"snapshots"`
	Format     string        `yaml:"format" env:"SNAPSHOT_FORMAT" env-default:"yaml"`
	PresignTTL time.Duration `yaml:"presign_ttl" env:"SNAPSHOT_PRESIGN_TTL" env-default:"1h"`
}

// Load reads configuration from path with environment variable overrides.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch database.Driver(c.Database.Driver) {
	case database.DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the sqlite driver")
		}
	case database.DriverD1:
		if c.Database.AccountID == "" || c.Database.DatabaseID == "" || c.Database.APIToken == "" {
			return fmt.Errorf("d1 driver needs account_id, database_id and D1_API_TOKEN")
		}
	}

	switch filestore.Provider(c.Snapshot.Provider) {
	case "", filestore.ProviderMemory, filestore.ProviderMinIO:
	default:
		return fmt.Errorf("unknown snapshot provider %q", c.Snapshot.Provider)
	}
	if _, err := snapshot.ParseFormat(c.Snapshot.Format); err != nil {
		return err
	}
	return nil
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// ExecutorConfig returns the executor settings.
func (c *Config) ExecutorConfig() *database.Config {
	return &database.Config{
		Driver: database.Driver(c.Database.Driver),
		DSN:    c.Database.DSN,
		Credentials: database.Credentials{
			AccountID:  c.Database.AccountID,
			APIToken:   c.Database.APIToken,
			DatabaseID: c.Database.DatabaseID,
		},
		MaxConns:        c.Database.MaxConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		QueryTimeout:    c.Database.QueryTimeout,
	}
}

// StoreConfig returns the snapshot storage settings, or nil when export
// is disabled.
func (c *Config) StoreConfig() *filestore.Config {
	if c.Snapshot.Provider == "" {
		return nil
	}
	return &filestore.Config{
		Provider:  filestore.Provider(c.Snapshot.Provider),
		Endpoint:  c.Snapshot.Endpoint,
		AccessKey: c.Snapshot.AccessKey,
		SecretKey: c.Snapshot.SecretKey,
		UseSSL:    c.Snapshot.UseSSL,
		Region:    c.Snapshot.Region,
		Bucket:    c.Snapshot.Bucket,
	}
}
