package otel

import (
	"context"
	"errors"
	"sync"
	"testing"

	authcore "github.com/insano70/bcos-sub014"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// stubSource serves a swappable snapshot, standing in for an engine. Snapshots
// are replaced whole and never mutated in place, so readers holding an old one
// stay race-free.
type stubSource struct {
	mu      sync.Mutex
	current authcore.MetricsSnapshot
	dropped uint64
}

func (s *stubSource) MetricsSnapshot() authcore.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stubSource) AuditDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *stubSource) set(snap authcore.MetricsSnapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}

func collectedValue(t *testing.T, rm metricdata.ResourceMetrics, name string) (int64, bool) {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterObservesEngineSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")

	src := &stubSource{dropped: 2}
	src.set(authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricPairIssued: 7,
			authcore.MetricValidateOK: 41,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricValidateLatency: {5, 1, 0, 0, 0, 0, 0, 0},
		},
	})

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	checks := []struct {
		name string
		want int64
	}{
		{name: "authcore_pair_issued_total", want: 7},
		{name: "authcore_validate_ok_total", want: 41},
		{name: "authcore_validate_latency_seconds_bucket_le_0_005", want: 5},
		{name: "authcore_validate_latency_seconds_bucket_le_0_01", want: 6},
		{name: "authcore_validate_latency_seconds_bucket_le_inf", want: 6},
		{name: "authcore_validate_latency_seconds_count", want: 6},
		{name: "authcore_audit_dropped_total", want: 2},
	}
	for _, check := range checks {
		got, ok := collectedValue(t, rm, check.name)
		if !ok {
			t.Fatalf("metric %s missing from collection", check.name)
		}
		if got != check.want {
			t.Fatalf("metric %s = %d, want %d", check.name, got, check.want)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")

	if _, err := NewExporterFromSource(nil, &stubSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporterFromSource(meter, nil); !errors.Is(err, ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")

	src := &stubSource{}
	src.set(authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricPairIssued: 1},
	})

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}

	var before metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &before); err != nil {
		t.Fatalf("Collect before close: %v", err)
	}
	if _, ok := collectedValue(t, before, "authcore_pair_issued_total"); !ok {
		t.Fatal("expected observation before close")
	}

	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var after metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &after); err != nil {
		t.Fatalf("Collect after close: %v", err)
	}
	if _, ok := collectedValue(t, after, "authcore_pair_issued_total"); ok {
		t.Fatal("closed exporter still observed")
	}
}

func TestExporterConcurrentSwapAndCollect(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("authcore-test")

	src := &stubSource{}
	src.set(authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricPairIssued: 1},
	})

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			src.set(authcore.MetricsSnapshot{
				Counters: map[authcore.MetricID]uint64{authcore.MetricPairIssued: n},
				Histograms: map[authcore.MetricID][]uint64{
					authcore.MetricValidateLatency: {n, 0, 0, 0, 0, 0, 0, 0},
				},
			})
			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
