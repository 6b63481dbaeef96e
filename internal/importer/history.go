package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RunRecord is one row of import_runs: the durable trace of an import
// batch, written at teardown whether the run succeeded or failed.
type RunRecord struct {
	BatchID         string    `json:"batchId"`
	SourceFile      string    `json:"sourceFile"`
	Status          string    `json:"status"`
	RecordsLoaded   int64     `json:"recordsLoaded"`
	ProductsCreated int64     `json:"productsCreated"`
	ProductsUpdated int64     `json:"productsUpdated"`
	Error           string    `json:"error,omitempty"`
	Report          Report    `json:"report,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// NewRunRecord builds the history row for a finished run.
func NewRunRecord(batch ImportBatch, res *RunResult) RunRecord {
	rec := RunRecord{
		BatchID:         batch.ID,
		SourceFile:      batch.SourceFile,
		Status:          string(res.State),
		RecordsLoaded:   res.Loaded,
		ProductsCreated: res.Stats.Inserted,
		ProductsUpdated: res.Stats.Updated,
		Report:          res.Report,
		StartedAt:       batch.StartedAt,
		FinishedAt:      time.Now().UTC(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// RunHistory persists and queries import run outcomes.
type RunHistory struct {
	db DB
}

// NewRunHistory creates a history repository.
func NewRunHistory(db DB) *RunHistory {
	return &RunHistory{db: db}
}

// Insert stores a run record. Re-inserting the same batch ID overwrites
// the previous record, so a crash between write and exit cannot wedge a
// retry.
func (h *RunHistory) Insert(ctx context.Context, rec RunRecord) error {
	var report []byte
	if rec.Report != nil {
		var err error
		report, err = json.Marshal(rec.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
	}

	var errText pgtype.Text
	if rec.Error != "" {
		errText = pgtype.Text{String: rec.Error, Valid: true}
	}

	_, err := h.db.Exec(ctx, `
		INSERT INTO import_runs
			(batch_id, source_file, status, records_loaded, products_created,
			 products_updated, error, report, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (batch_id) DO UPDATE SET
			status = EXCLUDED.status,
			records_loaded = EXCLUDED.records_loaded,
			products_created = EXCLUDED.products_created,
			products_updated = EXCLUDED.products_updated,
			error = EXCLUDED.error,
			report = EXCLUDED.report,
			finished_at = EXCLUDED.finished_at`,
		rec.BatchID, rec.SourceFile, rec.Status, rec.RecordsLoaded,
		rec.ProductsCreated, rec.ProductsUpdated, errText, report,
		rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (h *RunHistory) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.Query(ctx, `
		SELECT batch_id, source_file, status, records_loaded, products_created,
		       products_updated, error, report, started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get returns the record for one batch.
func (h *RunHistory) Get(ctx context.Context, batchID string) (RunRecord, error) {
	row := h.db.QueryRow(ctx, `
		SELECT batch_id, source_file, status, records_loaded, products_created,
		       products_updated, error, report, started_at, finished_at
		FROM import_runs
		WHERE batch_id = $1`, batchID)
	return scanRunRecord(row)
}

func scanRunRecord(row interface{ Scan(dest ...any) error }) (RunRecord, error) {
	var (
		rec     RunRecord
		errText pgtype.Text
		report  []byte
	)
	if err := row.Scan(
		&rec.BatchID, &rec.SourceFile, &rec.Status, &rec.RecordsLoaded,
		&rec.ProductsCreated, &rec.ProductsUpdated, &errText, &report,
		&rec.StartedAt, &rec.FinishedAt,
	); err != nil {
		return RunRecord{}, fmt.Errorf("scan run record: %w", err)
	}
	if errText.Valid {
		rec.Error = errText.String
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &rec.Report); err != nil {
			return RunRecord{}, fmt.Errorf("decode report: %w", err)
		}
	}
	return rec, nil
}
