package importer

import (
	"math"
	"sync"
	"time"
)

// Metric keys emitted in the final report.
const (
	MetricLoadPhase     = "load_temp_table"
	MetricMergePhase    = "update_main_table"
	MetricRecordsLoaded = "records_loaded"
	MetricCreated       = "new_products_created"
	MetricUpdated       = "existing_products_updated"
	MetricTotalAffected = "total_affected_records"
	MetricTotalTime     = "total_time"
)

// Report is the flat metrics document for one import run: phase durations
// in seconds (float64) and row counts (int64).
type Report map[string]any

// MetricsCollector records phase timings and row counts for one run.
//
// Phase timings use time.Now's monotonic clock reading, so wall-clock
// adjustments during a long load cannot skew durations. Finalize is
// best-effort: phases that never started are simply absent, and phases
// still open when the run dies are reported with their elapsed time so a
// partial report survives any failure.
type MetricsCollector struct {
	mu        sync.Mutex
	startedAt time.Time
	phases    map[string]*phaseTiming
	counts    map[string]int64
	report    Report
}

type phaseTiming struct {
	start time.Time
	dur   time.Duration
	done  bool
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		phases: make(map[string]*phaseTiming),
		counts: make(map[string]int64),
	}
}

// StartPhase marks the beginning of a named phase. Restarting a phase
// resets its timer.
func (m *MetricsCollector) StartPhase(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.startedAt.IsZero() {
		m.startedAt = now
	}
	m.phases[name] = &phaseTiming{start: now}
}

// EndPhase marks the end of a named phase and returns its duration.
// Ending a phase that never started is a no-op returning zero.
func (m *MetricsCollector) EndPhase(name string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.phases[name]
	if !ok || p.done {
		return 0
	}
	p.dur = time.Since(p.start)
	p.done = true
	return p.dur
}

// Record stores a named count, overwriting any previous value.
func (m *MetricsCollector) Record(key string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] = value
}

// Finalize builds the report. Callable exactly once per run in the
// teardown path; subsequent calls return the same report. Open phases are
// closed with their elapsed time, and total_time spans from the earliest
// phase start to the Finalize call.
func (m *MetricsCollector) Finalize() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.report != nil {
		return m.report
	}

	r := make(Report, len(m.phases)+len(m.counts)+1)
	for name, p := range m.phases {
		d := p.dur
		if !p.done {
			d = time.Since(p.start)
		}
		r[name] = roundSeconds(d)
	}
	for key, v := range m.counts {
		r[key] = v
	}

	var total time.Duration
	if !m.startedAt.IsZero() {
		total = time.Since(m.startedAt)
	}
	r[MetricTotalTime] = roundSeconds(total)

	m.report = r
	return r
}

// roundSeconds converts a duration to seconds with millisecond precision.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
