package otel

import (
	"context"
	"errors"
	"fmt"

	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// snapshotSource is the slice of the engine the exporter reads. Declared
// locally so tests can drive collection without a full engine.
type snapshotSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// counterRow ties one engine counter to its observable instrument.
type counterRow struct {
	id  authcore.MetricID
	ins metric.Int64ObservableCounter
}

// histogramRow ties one engine histogram to its gauges: one per cumulative
// bucket bound plus a total sample count.
type histogramRow struct {
	id      authcore.MetricID
	bounds  [8]metric.Int64ObservableGauge
	samples metric.Int64ObservableGauge
}

// Exporter bridges engine snapshots into an OpenTelemetry meter. Observation
// is pull-based: the meter's reader drives collection through a registered
// callback, so the engine's hot path never blocks on export.
type Exporter struct {
	source       snapshotSource
	counters     []counterRow
	histograms   []histogramRow
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

// instrumentSet accumulates instruments against a meter and remembers the
// first creation error, so construction reads linearly and reports one
// failure at the end.
type instrumentSet struct {
	meter       metric.Meter
	observables []metric.Observable
	err         error
}

func (s *instrumentSet) counter(name, help string) metric.Int64ObservableCounter {
	if s.err != nil {
		return nil
	}
	ins, err := s.meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		s.err = fmt.Errorf("create counter %s: %w", name, err)
		return nil
	}
	s.observables = append(s.observables, ins)
	return ins
}

func (s *instrumentSet) gauge(name, help string) metric.Int64ObservableGauge {
	if s.err != nil {
		return nil
	}
	ins, err := s.meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		s.err = fmt.Errorf("create gauge %s: %w", name, err)
		return nil
	}
	s.observables = append(s.observables, ins)
	return ins
}

// NewExporter registers the engine's metrics on the meter.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers a custom snapshot source on the meter.
func NewExporterFromSource(meter metric.Meter, source snapshotSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	set := &instrumentSet{
		meter:       meter,
		observables: make([]metric.Observable, 0, len(internaldefs.CounterDefs)+9*len(internaldefs.HistogramDefs)+1),
	}

	e := &Exporter{source: source}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterRow{id: def.ID, ins: set.counter(def.Name, def.Help)})
	}
	for _, def := range internaldefs.HistogramDefs {
		row := histogramRow{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			row.bounds[i] = set.gauge(def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.")
		}
		row.samples = set.gauge(def.Name+"_count", "Histogram total sample count.")
		e.histograms = append(e.histograms, row)
	}
	e.auditDropped = set.counter("authcore_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.")
	if set.err != nil {
		return nil, set.err
	}

	registration, err := meter.RegisterCallback(e.observe, set.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

// observe feeds one collection cycle from a fresh engine snapshot.
func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, row := range e.counters {
		observer.ObserveInt64(row.ins, int64(snapshot.Counters[row.id]))
	}
	for _, row := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[row.id]))
		for i, v := range cumulative {
			observer.ObserveInt64(row.bounds[i], int64(v))
		}
		observer.ObserveInt64(row.samples, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
