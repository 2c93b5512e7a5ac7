package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter that reads from the given [authcore.Engine].
func NewExporter(engine *authcore.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an exporter from a custom snapshot source,
// for callers that aggregate several engines or inject test data.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
// A disabled or empty engine renders to the empty string.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := newTextWriter()
	for _, def := range internaldefs.CounterDefs {
		w.counter(def.Name, def.Help, snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		w.histogram(def.Name, def.Help, cumulative)
	}
	w.counter("authcore_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)
	return w.String()
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

// textWriter assembles exposition text. Families render in definition order
// so output stays deterministic across scrapes.
type textWriter struct {
	strings.Builder
}

func newTextWriter() *textWriter {
	w := &textWriter{}
	w.Grow(8192)
	return w
}

func (w *textWriter) family(name, kind, help string) {
	w.WriteString("# HELP ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(helpEscaper.Replace(help))
	w.WriteString("\n# TYPE ")
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(kind)
	w.WriteByte('\n')
}

func (w *textWriter) sample(name string, value uint64) {
	w.WriteString(name)
	w.WriteByte(' ')
	w.WriteString(strconv.FormatUint(value, 10))
	w.WriteByte('\n')
}

func (w *textWriter) counter(name, help string, value uint64) {
	w.family(name, "counter", help)
	w.sample(name, value)
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, "histogram", help)
	for i, le := range internaldefs.HistogramBounds {
		w.WriteString(name)
		w.WriteString(`_bucket{le="`)
		w.WriteString(le)
		w.WriteString(`"} `)
		w.WriteString(strconv.FormatUint(cumulative[i], 10))
		w.WriteByte('\n')
	}
	w.sample(name+"_count", cumulative[len(cumulative)-1])
	// The engine does not track sums; emit a stable zero so scrapers still
	// see a complete family.
	w.sample(name+"_sum", 0)
}
