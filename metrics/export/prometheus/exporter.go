package prometheus

import (
	"net/http"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() shopauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector over an engine's in-process counters.
type Exporter struct {
	source       metricsSource
	counters     []*prometheus.Desc
	histograms   []*prometheus.Desc
	auditDropped *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

func NewPrometheusExporter(engine *shopauth.Engine) *Exporter {
	return NewPrometheusExporterFromSource(engine)
}

func NewPrometheusExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil,
		),
	}
	for i, def := range internaldefs.CounterDefs {
		e.counters[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		e.histograms[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.counters {
		ch <- d
	}
	for _, d := range e.histograms {
		ch <- d
	}
	ch <- e.auditDropped
}

// Collect emits nothing for engine counters when metrics are disabled. The
// dropped-audit counter is always present.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	if len(snapshot.Counters) > 0 {
		for i, def := range internaldefs.CounterDefs {
			ch <- prometheus.MustNewConstMetric(
				e.counters[i], prometheus.CounterValue, float64(snapshot.Counters[def.ID]),
			)
		}
	}

	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[j]
		}
		// Durations are bucketed only, so the sum is not available.
		ch <- prometheus.MustNewConstHistogram(
			e.histograms[i], cumulative[len(cumulative)-1], 0, buckets,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		e.auditDropped, prometheus.CounterValue, float64(e.source.AuditDropped()),
	)
}

// Handler serves the exporter from a private registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
