// Package metrics exposes batch counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/traveler-renamer/constants"
)

// Metrics is the set of collectors the batch pipeline reports into.
type Metrics struct {
	Registry        *prometheus.Registry
	Files           *prometheus.CounterVec
	Batches         prometheus.Counter
	ExtractDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_files_total",
			Help: "Processed files by outcome.",
		}, []string{"status"}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_batches_total",
			Help: "Completed batches.",
		}),
		ExtractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traveler_extract_duration_seconds",
			Help:    "Latency of extraction calls, cache hits excluded.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.Files, m.Batches, m.ExtractDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFile counts one finished file. Safe on a nil receiver.
func (m *Metrics) ObserveFile(kind constants.StatusKind) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(string(kind)).Inc()
}

// ObserveBatch counts one finished batch. Safe on a nil receiver.
func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.Batches.Inc()
}

// ObserveExtract records one extraction call. outcome is "ok", "empty" or "error".
func (m *Metrics) ObserveExtract(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
