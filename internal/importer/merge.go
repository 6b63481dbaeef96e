package importer

import (
	"context"
	"log/slog"
)

// insertMissingSQL creates a catalog record for every staged barcode the
// catalog has not seen before. DISTINCT ON keeps the newest staged row
// when a batch contains duplicate barcodes; ON CONFLICT DO NOTHING guards
// the race against a concurrent batch inserting the same barcode.
const insertMissingSQL = `
INSERT INTO products (barcode, price, stock, name, description, created_at, updated_at)
SELECT DISTINCT ON (s.barcode)
       s.barcode, s.price, s.stock, s.name, s.description, now(), now()
FROM catalog_staging s
WHERE s.batch_id = $1
  AND NOT EXISTS (SELECT 1 FROM products p WHERE p.barcode = s.barcode)
ORDER BY s.barcode, s.staged_at DESC
ON CONFLICT (barcode) DO NOTHING`

// updateChangedSQL overwrites price, stock, and updated_at for staged
// barcodes that already exist with different values. The change guard is
// deliberate: rows whose staged values match the catalog are not
// rewritten, which also keeps the update phase from touching rows the
// insert phase just created in this transaction.
const updateChangedSQL = `
UPDATE products p
SET price = s.price, stock = s.stock, updated_at = now()
FROM catalog_staging s
WHERE s.batch_id = $1
  AND s.barcode = p.barcode
  AND (p.price IS DISTINCT FROM s.price OR p.stock IS DISTINCT FROM s.stock)`

// MergeStats reports what one merge did. TotalAffected is always
// Inserted + Updated.
type MergeStats struct {
	Inserted int64
	Updated  int64
}

// TotalAffected returns the number of catalog rows the merge touched.
func (s MergeStats) TotalAffected() int64 { return s.Inserted + s.Updated }

// MergeEngine reconciles staged rows against the product catalog:
// insert-if-absent, then update-if-changed. Both steps run in one
// transaction, so a failure at any point leaves the catalog untouched and
// the batch safely re-runnable.
type MergeEngine struct {
	db  DB
	log *slog.Logger
}

// NewMergeEngine creates a merge engine bound to the run's connection.
func NewMergeEngine(db DB, log *slog.Logger) *MergeEngine {
	if log == nil {
		log = slog.Default()
	}
	return &MergeEngine{db: db, log: log}
}

// Merge reconciles all staging rows for batchID into the catalog and
// returns the affected-row counts. Insert runs strictly before update so
// newly created records are never counted twice.
func (e *MergeEngine) Merge(ctx context.Context, batchID string) (MergeStats, error) {
	var stats MergeStats

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return stats, &MergeError{BatchID: batchID, Err: err}
	}
	defer tx.Rollback(ctx)

	insertTag, err := tx.Exec(ctx, insertMissingSQL, batchID)
	if err != nil {
		return stats, &MergeError{BatchID: batchID, Err: err}
	}
	stats.Inserted = insertTag.RowsAffected()

	updateTag, err := tx.Exec(ctx, updateChangedSQL, batchID)
	if err != nil {
		return stats, &MergeError{BatchID: batchID, Err: err}
	}
	stats.Updated = updateTag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return MergeStats{}, &MergeError{BatchID: batchID, Err: err}
	}

	e.log.Debug("merge complete",
		"batch_id", batchID,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
	)
	return stats, nil
}
