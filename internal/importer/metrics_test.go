package importer

import (
	"testing"
	"time"
)

func TestMetricsCollector_PhaseTiming(t *testing.T) {
	m := NewMetricsCollector()

	m.StartPhase(MetricLoadPhase)
	time.Sleep(10 * time.Millisecond)
	d := m.EndPhase(MetricLoadPhase)

	if d < 10*time.Millisecond {
		t.Errorf("EndPhase duration = %v, want >= 10ms", d)
	}

	report := m.Finalize()
	secs, ok := report[MetricLoadPhase].(float64)
	if !ok {
		t.Fatalf("report[%s] = %T, want float64", MetricLoadPhase, report[MetricLoadPhase])
	}
	if secs <= 0 {
		t.Errorf("report[%s] = %v, want > 0", MetricLoadPhase, secs)
	}
}

func TestMetricsCollector_EndUnstartedPhase(t *testing.T) {
	m := NewMetricsCollector()

	if d := m.EndPhase("never_started"); d != 0 {
		t.Errorf("EndPhase on unstarted phase = %v, want 0", d)
	}
}

func TestMetricsCollector_Counts(t *testing.T) {
	m := NewMetricsCollector()
	m.Record(MetricRecordsLoaded, 1000)
	m.Record(MetricCreated, 1000)
	m.Record(MetricUpdated, 0)
	m.Record(MetricTotalAffected, 1000)

	report := m.Finalize()

	tests := []struct {
		key  string
		want int64
	}{
		{MetricRecordsLoaded, 1000},
		{MetricCreated, 1000},
		{MetricUpdated, 0},
		{MetricTotalAffected, 1000},
	}
	for _, tt := range tests {
		got, ok := report[tt.key].(int64)
		if !ok {
			t.Fatalf("report[%s] = %T, want int64", tt.key, report[tt.key])
		}
		if got != tt.want {
			t.Errorf("report[%s] = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestMetricsCollector_PartialRun(t *testing.T) {
	// A run that dies mid-load still produces a report: the open phase is
	// closed with its elapsed time and total_time is present.
	m := NewMetricsCollector()
	m.StartPhase(MetricLoadPhase)
	m.Record(MetricRecordsLoaded, 42)

	report := m.Finalize()

	if _, ok := report[MetricLoadPhase].(float64); !ok {
		t.Errorf("open phase missing from partial report")
	}
	if _, ok := report[MetricTotalTime].(float64); !ok {
		t.Errorf("total_time missing from partial report")
	}
	if _, ok := report[MetricMergePhase]; ok {
		t.Errorf("never-started phase should be absent from report")
	}
}

func TestMetricsCollector_FinalizeIdempotent(t *testing.T) {
	m := NewMetricsCollector()
	m.StartPhase(MetricLoadPhase)
	m.EndPhase(MetricLoadPhase)

	first := m.Finalize()
	time.Sleep(5 * time.Millisecond)
	second := m.Finalize()

	if first[MetricTotalTime] != second[MetricTotalTime] {
		t.Errorf("Finalize not idempotent: total_time %v != %v",
			first[MetricTotalTime], second[MetricTotalTime])
	}
}

func TestMetricsCollector_EmptyRun(t *testing.T) {
	m := NewMetricsCollector()
	report := m.Finalize()

	if got := report[MetricTotalTime].(float64); got != 0 {
		t.Errorf("total_time for empty run = %v, want 0", got)
	}
}
