package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Statements applied to the run's connection before the bulk window.
// Referential-integrity enforcement and synchronous durability are
// session-scoped; the staging table's WAL setting is store-global DDL,
// which is why the relax/restore window is a mutually exclusive critical
// section across concurrent runs. Uniqueness work is structurally absent
// on the bulk path: catalog_staging carries no unique constraints.
//
// restoreStatements reverse relaxStatements in reverse order, so
// restoreStatements[len-1-i] undoes relaxStatements[i].
var relaxStatements = []string{
	`ALTER TABLE catalog_staging SET UNLOGGED`,
	`SET session_replication_role = 'replica'`,
	`SET synchronous_commit = 'off'`,
}

var restoreStatements = []string{
	`SET synchronous_commit = 'on'`,
	`SET session_replication_role = 'origin'`,
	`ALTER TABLE catalog_staging SET LOGGED`,
}

// EngineTuner relaxes engine safety settings for the bulk window and
// guarantees their restoration afterward.
//
// Relax acquires the shared gate and holds it until Restore, so only one
// bulk-tuned session can exist per store at a time. Restore runs every
// restore statement unconditionally, aggregating failures into a
// *RestoreError rather than stopping at the first one: a partial
// restoration is still better than none.
type EngineTuner struct {
	db      execer
	gate    *sync.Mutex
	log     *slog.Logger
	relaxed bool
}

// NewEngineTuner creates a tuner bound to the run's connection. All runs
// against the same store must share the same gate.
func NewEngineTuner(db execer, gate *sync.Mutex, log *slog.Logger) *EngineTuner {
	if log == nil {
		log = slog.Default()
	}
	return &EngineTuner{db: db, gate: gate, log: log}
}

// Relax disables referential-integrity checks, synchronous durability, and
// WAL logging of the staging table. Blocks until no other run holds the
// tuned window. If any statement fails, the ones already applied are
// rolled back best-effort and the gate is released.
func (t *EngineTuner) Relax(ctx context.Context) error {
	t.gate.Lock()

	for i, stmt := range relaxStatements {
		if _, err := t.db.Exec(ctx, stmt); err != nil {
			t.undo(ctx, i)
			t.gate.Unlock()
			return fmt.Errorf("relax engine settings: %w", err)
		}
	}

	t.relaxed = true
	t.log.Debug("engine settings relaxed for bulk window")
	return nil
}

// Restore re-enables everything Relax disabled and releases the gate.
// Safe to call when not relaxed (no-op), so the orchestrator can defer it
// unconditionally. Returns a *RestoreError if any setting could not be
// restored; the store is then in a degraded safety state.
func (t *EngineTuner) Restore(ctx context.Context) error {
	if !t.relaxed {
		return nil
	}
	t.relaxed = false
	defer t.gate.Unlock()

	var errs []error
	for _, stmt := range restoreStatements {
		if _, err := t.db.Exec(ctx, stmt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", stmt, err))
		}
	}
	if len(errs) > 0 {
		return &RestoreError{Err: errors.Join(errs...)}
	}

	t.log.Debug("engine settings restored")
	return nil
}

// undo reverses the first applied relax statements after Relax failed at
// index failedAt.
func (t *EngineTuner) undo(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		stmt := restoreStatements[len(restoreStatements)-1-i]
		if _, err := t.db.Exec(ctx, stmt); err != nil {
			t.log.Error("failed to undo partial relax", "stmt", stmt, "error", err)
		}
	}
}
