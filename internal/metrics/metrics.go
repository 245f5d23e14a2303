package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters exposed on /metrics.
type Metrics struct {
	TransactionsScanned prometheus.Counter
	AlertsEmitted       prometheus.Counter
	ProvenanceFailures  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		TransactionsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_transactions_scanned_total",
			Help: "Total number of transactions handed to the detection engine",
		}),
		AlertsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_alerts_emitted_total",
			Help: "Total number of alerts emitted",
		}),
		ProvenanceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentry_provenance_failures_total",
			Help: "Total number of failed pool provenance checks",
		}),
	}
	prometheus.MustRegister(m.TransactionsScanned, m.AlertsEmitted, m.ProvenanceFailures)
	return m
}

// Serve exposes the prometheus handler on addr. Blocks until the server exits.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
