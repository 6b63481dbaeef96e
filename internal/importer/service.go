package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skuline/catalog-importer/internal/config"
)

// Service is the entry point for import runs. It owns the connection pool,
// the run history, and the tuner gate that serializes engine-tuned windows
// across concurrent runs in this process.
type Service struct {
	pool    *pgxpool.Pool
	cfg     *config.Config
	history *RunHistory
	log     *slog.Logger
	gate    sync.Mutex
}

// NewService creates the import service.
func NewService(pool *pgxpool.Pool, cfg *config.Config) *Service {
	return &Service{
		pool:    pool,
		cfg:     cfg,
		history: NewRunHistory(pool),
		log:     slog.Default(),
	}
}

// Run imports the given file synchronously and returns the run result.
// The result is non-nil whenever a batch was started, even on failure.
func (s *Service) Run(ctx context.Context, filePath string) (*RunResult, error) {
	return s.runBatch(ctx, NewImportBatch(filePath))
}

// Start launches an import asynchronously and returns its batch
// immediately. Progress and outcome are observable via the run history.
func (s *Service) Start(filePath string) ImportBatch {
	batch := NewImportBatch(filePath)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Import.Timeout)
		defer cancel()
		if _, err := s.runBatch(ctx, batch); err != nil {
			s.log.Error("background import failed", "batch_id", batch.ID, "error", err)
		}
	}()
	return batch
}

// runBatch executes one orchestrated run on a dedicated connection, so the
// tuner's session-scoped settings cover the load and merge work.
func (s *Service) runBatch(ctx context.Context, batch ImportBatch) (*RunResult, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	orch := NewOrchestrator(conn, batch, &s.gate, Options{
		CleanupStaging: s.cfg.Import.CleanupStaging,
		ReportDir:      s.cfg.Import.ReportDir,
		History:        s.history,
		Logger:         s.log,
	})
	return orch.Run(ctx)
}

// History lists recent run records, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]RunRecord, error) {
	return s.history.List(ctx, limit)
}

// Report returns the stored record for one batch.
func (s *Service) Report(ctx context.Context, batchID string) (RunRecord, error) {
	return s.history.Get(ctx, batchID)
}

// Ping verifies store connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
