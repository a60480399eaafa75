package prometheus

import (
	"net/http"

	"github.com/MrEthical07/marketAuth/internal/metrics"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is what the exporter reads on every scrape. *marketAuth.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() metrics.Snapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector over engine counters. It keeps no state
// of its own; each Collect reads a fresh snapshot.
type Exporter struct {
	source     Source
	counters   []counterDesc
	histograms []counterDesc
	dropped    *prom.Desc
}

type counterDesc struct {
	id   metrics.ID
	desc *prom.Desc
}

var _ prom.Collector = (*Exporter)(nil)

// New builds a collector for source.
func New(source Source) *Exporter {
	e := &Exporter{
		source:  source,
		dropped: prom.NewDesc("marketauth_audit_dropped_total", "Audit events dropped under backpressure.", nil, nil),
	}
	for _, def := range metrics.CounterDefs {
		e.counters = append(e.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range metrics.HistogramDefs {
		e.histograms = append(e.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.dropped
}

func (e *Exporter) Collect(ch chan<- prom.Metric) {
	if e.source == nil {
		return
	}
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := metrics.Cumulative(snap.Histograms[h.id])
		buckets := make(map[float64]uint64, len(metrics.BucketUpperBounds))
		for i, le := range metrics.BucketUpperBounds {
			buckets[le] = cumulative[i]
		}
		// Snapshots carry no sum.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- prom.MustNewConstMetric(e.dropped, prom.CounterValue, float64(e.source.AuditDropped()))
}

// Handler serves the exporter from a private registry, so nothing leaks into
// prometheus.DefaultRegisterer.
func (e *Exporter) Handler() http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
