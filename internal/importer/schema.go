package importer

import (
	"context"
	"fmt"
)

// Schema owned by the importer. EnsureSchema is idempotent and runs at the
// start of every orchestration, so a fresh database needs no separate
// migration step before the first import.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS catalog_staging (
		barcode     text NOT NULL,
		price       numeric(12,2) NOT NULL,
		stock       integer NOT NULL,
		name        text NOT NULL DEFAULT '',
		description text,
		batch_id    text NOT NULL,
		staged_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_staging_batch
		ON catalog_staging (batch_id, barcode)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          bigint GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		barcode     text NOT NULL UNIQUE,
		price       numeric(12,2) NOT NULL,
		stock       integer NOT NULL,
		name        text NOT NULL DEFAULT '',
		description text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS import_runs (
		batch_id         text PRIMARY KEY,
		source_file      text NOT NULL,
		status           text NOT NULL,
		records_loaded   bigint NOT NULL DEFAULT 0,
		products_created bigint NOT NULL DEFAULT 0,
		products_updated bigint NOT NULL DEFAULT 0,
		error            text,
		report           jsonb,
		started_at       timestamptz NOT NULL,
		finished_at      timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the staging, catalog, and run-history tables if they
// do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
