package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg              *prometheus.Registry
	DocumentsWritten prometheus.Counter
	BatchesCommitted prometheus.Counter
	BatchesFailed    prometheus.Counter
	RecordsRejected  prometheus.Counter
	KeyCollisions    prometheus.Counter
	BatchLatencySec  prometheus.Histogram
	RunBatches       prometheus.Gauge
	RunCommitted     prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	docs := prometheus.NewCounter(prometheus.CounterOpts{Name: "lvimport_documents_written_total"})
	committed := prometheus.NewCounter(prometheus.CounterOpts{Name: "lvimport_batches_committed_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "lvimport_batches_failed_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "lvimport_records_rejected_total"})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{Name: "lvimport_key_collisions_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lvimport_batch_commit_seconds",
		Buckets: prometheus.DefBuckets,
	})
	runBatches := prometheus.NewGauge(prometheus.GaugeOpts{Name: "lvimport_run_batches"})
	runCommitted := prometheus.NewGauge(prometheus.GaugeOpts{Name: "lvimport_run_batches_committed"})

	r.MustRegister(docs, committed, failed, rejected, collisions, latency, runBatches, runCommitted)
	return &Registry{
		reg:              r,
		DocumentsWritten: docs,
		BatchesCommitted: committed,
		BatchesFailed:    failed,
		RecordsRejected:  rejected,
		KeyCollisions:    collisions,
		BatchLatencySec:  latency,
		RunBatches:       runBatches,
		RunCommitted:     runCommitted,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
