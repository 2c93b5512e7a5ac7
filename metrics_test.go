package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricPairIssued)
	m.Add(MetricTokenRevoked, 7)

	if got := m.Value(MetricPairIssued); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := m.Value(MetricTokenRevoked); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if m.Enabled() {
		t.Fatal("expected disabled")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot should be empty: %+v", snap)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricValidateOK)
	m.Inc(MetricValidateOK)
	m.Inc(MetricValidateOK)
	m.Add(MetricSweepTokensDeleted, 42)
	m.Add(MetricSweepTokensDeleted, 0)

	if got := m.Value(MetricValidateOK); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := m.Value(MetricSweepTokensDeleted); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestMetricsOutOfRangeIDSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricID(9999))
	m.Add(MetricID(9999), 3)
	m.Observe(MetricID(9999), time.Millisecond)

	if got := m.Value(MetricID(9999)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricPairIssued)
	m.Add(MetricPairIssued, 2)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricPairIssued); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("nil snapshot should be empty: %+v", snap)
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshSuccess)

	snap := m.Snapshot()
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("snapshot = %d", snap.Counters[MetricRefreshSuccess])
	}

	m.Inc(MetricRefreshSuccess)
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatal("snapshot must not track later increments")
	}
	if got := m.Value(MetricRefreshSuccess); got != 2 {
		t.Fatalf("live value = %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsLatencyRequiresBothSwitches(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: false})
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	if m.LatencyEnabled() {
		t.Fatal("latency should be off")
	}
	if h := m.Snapshot().Histograms[MetricValidateLatency]; h != nil {
		t.Fatalf("unexpected histogram: %v", h)
	}

	// Latency histograms ride on the metrics switch.
	m = NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	if m.LatencyEnabled() {
		t.Fatal("latency must not outlive disabled metrics")
	}
}

func TestMetricsObserveBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	durations := []time.Duration{
		2 * time.Millisecond,   // bucket 0
		5 * time.Millisecond,   // bucket 0 boundary
		6 * time.Millisecond,   // bucket 1
		10 * time.Millisecond,  // bucket 1 boundary
		25 * time.Millisecond,  // bucket 2 boundary
		50 * time.Millisecond,  // bucket 3 boundary
		100 * time.Millisecond, // bucket 4 boundary
		250 * time.Millisecond, // bucket 5 boundary
		500 * time.Millisecond, // bucket 6 boundary
		3 * time.Second,        // bucket 7 overflow
	}
	for _, d := range durations {
		m.Observe(MetricValidateLatency, d)
	}

	// A non-latency id never lands in a histogram.
	m.Observe(MetricValidateOK, time.Millisecond)

	h := m.Snapshot().Histograms[MetricValidateLatency]
	if len(h) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(h))
	}
	want := []uint64{2, 2, 1, 1, 1, 1, 1, 1}
	for i, n := range want {
		if h[i] != n {
			t.Fatalf("bucket %d = %d, want %d (full: %v)", i, h[i], n, h)
		}
	}
}
