// Package importer implements the bulk product catalog import pipeline:
// staged CSV load, set-based merge into the catalog, engine tuning around
// the bulk window, and per-run metrics.
package importer

import (
	"time"

	"github.com/google/uuid"
)

// ImportBatch identifies one ingestion run. Every staged row carries the
// batch ID, which is what isolates concurrent runs and makes retries
// idempotent (the loader clears the batch's staging rows before reloading).
type ImportBatch struct {
	ID         string
	SourceFile string
	StartedAt  time.Time
}

// NewImportBatch creates a batch for the given source file. The ID is
// time-derived with a random suffix so concurrent runs started in the same
// second cannot collide.
func NewImportBatch(sourceFile string) ImportBatch {
	now := time.Now().UTC()
	return ImportBatch{
		ID:         now.Format("20060102T150405") + "-" + uuid.NewString()[:8],
		SourceFile: sourceFile,
		StartedAt:  now,
	}
}
