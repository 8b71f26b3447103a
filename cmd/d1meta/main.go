// Command d1meta serves the schema of a SQLite-compatible database over HTTP.
//
//	d1meta -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/koustreak/d1meta/internal/catalog"
	"github.com/koustreak/d1meta/internal/config"
	"github.com/koustreak/d1meta/internal/database"
	_ "github.com/koustreak/d1meta/internal/database/sqlite"
	"github.com/koustreak/d1meta/internal/filestore"
	"github.com/koustreak/d1meta/internal/filestore/memory"
	"github.com/koustreak/d1meta/internal/filestore/minio"
	"github.com/koustreak/d1meta/internal/logger"
	"github.com/koustreak/d1meta/internal/schema"
	"github.com/koustreak/d1meta/internal/server"
	"github.com/koustreak/d1meta/internal/snapshot"
)

var configPath = flag.String("config", "", "path to config file (environment only when empty)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LoggerConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWith("d1meta stopped", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	dbCfg := cfg.ExecutorConfig()
	log.InfoWith("opening database", map[string]any{
		"driver":      dbCfg.Driver,
		"credentials": dbCfg.Credentials.String(),
	})

	exec, err := database.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer exec.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var src catalog.Source = catalog.New(exec, catalog.WithLogger(log))
	var cache *catalog.Cache
	if cfg.Cache.Enabled {
		cache = catalog.NewCache(src, catalog.CacheOptions{
			TTL:     cfg.Cache.TTL,
			Logger:  log,
			Metrics: catalog.NewCacheMetrics(reg),
		})
		src = cache
	}

	inspectorOpts := []schema.InspectorOption{
		schema.WithLogger(log),
		schema.WithParallelism(cfg.Schema.Parallelism),
	}
	if cfg.Schema.GroupForeignKeys {
		inspectorOpts = append(inspectorOpts, schema.WithGroupedForeignKeys())
	}
	inspector := schema.NewInspector(src, inspectorOpts...)

	exporter, err := openExporter(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Options{
		Reader:   inspector,
		Pinger:   exec,
		Cache:    cache,
		Exporter: exporter,
		Database: cfg.Database.Name,
		Logger:   log,
		Registry: reg,
	})

	return srv.Run(ctx)
}

// openExporter returns nil when snapshot export is disabled.
func openExporter(ctx context.Context, cfg *config.Config, log *logger.Logger) (*snapshot.Exporter, error) {
	storeCfg := cfg.StoreConfig()
	if storeCfg == nil {
		return nil, nil
	}

	var store filestore.Store
	switch storeCfg.Provider {
	case filestore.ProviderMinIO:
		d, err := minio.New(ctx, storeCfg)
		if err != nil {
			return nil, err
		}
		store = d
	case filestore.ProviderMemory:
		store = memory.New()
	}

	format, err := snapshot.ParseFormat(cfg.Snapshot.Format)
	if err != nil {
		return nil, err
	}

	log.InfoWith("snapshot export enabled", map[string]any{
		"provider": storeCfg.Provider,
		"bucket":   storeCfg.Bucket,
	})
	return snapshot.NewExporter(store, snapshot.ExporterOptions{
		Bucket:     storeCfg.Bucket,
		Prefix:     cfg.Snapshot.Prefix,
		Format:     format,
		PresignTTL: cfg.Snapshot.PresignTTL,
		Logger:     log,
	}), nil
}
