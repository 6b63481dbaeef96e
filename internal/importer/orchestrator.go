package importer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// runState is the orchestrator's position in the import state machine.
type runState string

const (
	StateInit        runState = "init"
	StateSchemaReady runState = "schema_ready"
	StateLoaded      runState = "loaded"
	StateMerged      runState = "merged"
	StateDone        runState = "done"
	StateFailed      runState = "failed"
)

// restoreTimeout bounds the teardown restore attempt so a hung store
// cannot keep the process alive forever after cancellation.
const restoreTimeout = 30 * time.Second

// Narrow views of the pipeline components, so tests can inject failures at
// any phase boundary.
type loader interface {
	Load(ctx context.Context, batchID, path string) (int64, error)
}

type merger interface {
	Merge(ctx context.Context, batchID string) (MergeStats, error)
}

type tuner interface {
	Relax(ctx context.Context) error
	Restore(ctx context.Context) error
}

// RunResult is the outcome of one orchestrated import.
type RunResult struct {
	BatchID string
	State   runState
	Loaded  int64
	Stats   MergeStats
	Report  Report

	// RestoreDegraded is set when engine settings could not be fully
	// restored at teardown. The run outcome itself is unaffected, but the
	// store needs operator attention.
	RestoreDegraded bool

	Err error
}

// Options configures an orchestrated run.
type Options struct {
	// CleanupStaging deletes the batch's staging rows after a successful
	// merge to bound staging growth.
	CleanupStaging bool

	// ReportDir, when set, receives one <batch_id>.json metrics document
	// per run.
	ReportDir string

	// History, when set, records the run outcome in import_runs.
	History *RunHistory

	Logger *slog.Logger
}

// Orchestrator sequences one import run: ensure schema, relax engine
// settings, bulk load, merge, cleanup. Teardown (tuner restore, then
// metrics finalize) is deferred at the top of Run, so it executes exactly
// once on every exit path, including panics and context cancellation.
type Orchestrator struct {
	db      DB
	batch   ImportBatch
	loader  loader
	merger  merger
	tuner   tuner
	metrics *MetricsCollector
	opts    Options
	log     *slog.Logger
}

// NewOrchestrator wires the real pipeline components onto a single
// dedicated connection. gate serializes the engine-tuned window across
// concurrent runs; all orchestrators against the same store must share it.
func NewOrchestrator(db DB, batch ImportBatch, gate *sync.Mutex, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("batch_id", batch.ID, "source_file", batch.SourceFile)

	return &Orchestrator{
		db:      db,
		batch:   batch,
		loader:  NewBulkLoader(db, log),
		merger:  NewMergeEngine(db, log),
		tuner:   NewEngineTuner(db, gate, log),
		metrics: NewMetricsCollector(),
		opts:    opts,
		log:     log,
	}
}

// Run executes the import. The returned RunResult is always non-nil and
// carries the (possibly partial) metrics report even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{BatchID: o.batch.ID, State: StateInit}
	o.log.Info("import starting", "state", res.State)

	defer o.teardown(res)

	if err := EnsureSchema(ctx, o.db); err != nil {
		return o.fail(res, err)
	}
	o.transition(res, StateSchemaReady)

	if err := o.tuner.Relax(ctx); err != nil {
		return o.fail(res, err)
	}

	o.metrics.StartPhase(MetricLoadPhase)
	loaded, err := o.loader.Load(ctx, o.batch.ID, o.batch.SourceFile)
	loadDur := o.metrics.EndPhase(MetricLoadPhase)
	if err != nil {
		return o.fail(res, err)
	}
	res.Loaded = loaded
	o.metrics.Record(MetricRecordsLoaded, loaded)
	o.transition(res, StateLoaded, "rows", loaded, "duration", loadDur)

	o.metrics.StartPhase(MetricMergePhase)
	stats, err := o.merger.Merge(ctx, o.batch.ID)
	mergeDur := o.metrics.EndPhase(MetricMergePhase)
	if err != nil {
		return o.fail(res, err)
	}
	res.Stats = stats
	o.metrics.Record(MetricCreated, stats.Inserted)
	o.metrics.Record(MetricUpdated, stats.Updated)
	o.metrics.Record(MetricTotalAffected, stats.TotalAffected())
	o.transition(res, StateMerged,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"duration", mergeDur,
	)

	if o.opts.CleanupStaging {
		if _, err := o.db.Exec(ctx, `DELETE FROM catalog_staging WHERE batch_id = $1`, o.batch.ID); err != nil {
			// Leftover staging rows are harmless; the next attempt of any
			// batch clears its own rows first.
			o.log.Warn("staging cleanup failed", "error", err)
		}
	}

	o.transition(res, StateDone)
	return res, nil
}

// transition advances the state machine and emits the traceability log
// line for the new state.
func (o *Orchestrator) transition(res *RunResult, state runState, args ...any) {
	res.State = state
	o.log.Info("state transition", append([]any{"state", state}, args...)...)
}

func (o *Orchestrator) fail(res *RunResult, err error) (*RunResult, error) {
	failedFrom := res.State
	res.State = StateFailed
	res.Err = err
	o.log.Error("import failed", "state", StateFailed, "from", failedFrom, "error", err)
	return res, err
}

// teardown restores engine settings, finalizes metrics, emits the report,
// and records run history. It runs on every exit path. Restoration uses a
// fresh context: the run's context may already be cancelled, and leaving
// checks disabled would corrupt unrelated work against the store.
func (o *Orchestrator) teardown(res *RunResult) {
	restoreCtx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	if err := o.tuner.Restore(restoreCtx); err != nil {
		res.RestoreDegraded = true
		o.log.Error("engine settings not fully restored; store safety checks may still be disabled",
			"error", err,
		)
	}

	res.Report = o.metrics.Finalize()
	o.log.Info("import report", "state", res.State, "report", res.Report)

	if o.opts.ReportDir != "" {
		if err := writeReportFile(o.opts.ReportDir, o.batch.ID, res.Report); err != nil {
			o.log.Warn("failed to write report file", "error", err)
		}
	}

	if o.opts.History != nil {
		rec := NewRunRecord(o.batch, res)
		if err := o.opts.History.Insert(restoreCtx, rec); err != nil {
			o.log.Warn("failed to record run history", "error", err)
		}
	}
}

// writeReportFile writes the metrics document as <dir>/<batchID>.json.
func writeReportFile(dir, batchID string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, batchID+".json"), data, 0o644)
}
