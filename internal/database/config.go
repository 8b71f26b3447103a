package database

import "time"

// Driver identifies the transport behind an Executor.
type Driver string

const (
	// DriverSQLite is the local SQLite executor in database/sqlite.
	DriverSQLite Driver = "sqlite"

	// DriverD1 is the remote D1 HTTP transport. It is provided outside this
	// module and registered with Register.
	DriverD1 Driver = "d1"
)

// Credentials are the three opaque identifiers a remote transport needs.
// They are passed through unchanged; nothing in this module interprets them.
type Credentials struct {
	AccountID  string
	APIToken   string
	DatabaseID string
}

// String renders the credentials with the token redacted, so a Config can be
// logged safely.
func (c Credentials) String() string {
	token := ""
	if c.APIToken != "" {
		token = "***"
	}
	return "account=" + c.AccountID + " database=" + c.DatabaseID + " token=" + token
}

// Config holds all settings needed to open an Executor.
type Config struct {
	// Driver selects the registered factory (e.g. DriverSQLite).
	Driver Driver

	// DSN is the data source name for local drivers.
	// Example: "file:app.db?mode=ro" or ":memory:"
	DSN string

	// Credentials are forwarded to remote transports.
	Credentials Credentials

	// Pool tuning
	MaxConns        int           // maximum number of open connections
	MaxConnLifetime time.Duration // maximum time a connection may be reused

	// Timeouts
	ConnectTimeout time.Duration // time limit for the initial ping
	QueryTimeout   time.Duration // per-statement deadline applied by the executor; 0 disables
}

// DefaultConfig returns settings for a local SQLite executor on dsn.
func DefaultConfig(dsn string) *Config {
	return &Config{
		Driver:          DriverSQLite,
		DSN:             dsn,
		MaxConns:        4,
		MaxConnLifetime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    30 * time.Second,
	}
}
