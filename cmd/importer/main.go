// Command importer runs one bulk import of the file named by IMPORT_FILE
// and exits non-zero if the batch failed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/skuline/catalog-importer/internal/config"
	"github.com/skuline/catalog-importer/internal/importer"
	"github.com/skuline/catalog-importer/internal/logging"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Import.File == "" {
		slog.Error("IMPORT_FILE is required")
		os.Exit(1)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Import.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// An interrupt cancels the run; the orchestrator's teardown still
	// restores engine settings and emits the partial report.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("received signal, cancelling import", "signal", sig)
		cancel()
	}()

	service := importer.NewService(pool, cfg)
	res, err := service.Run(ctx, cfg.Import.File)
	if err != nil {
		os.Exit(1)
	}
	if res.RestoreDegraded {
		// The import itself succeeded; exit zero but the log carries the
		// degraded-restore warning for operators.
		slog.Warn("import succeeded with degraded engine restore", "batch_id", res.BatchID)
	}
}
