// Package metrics holds the per-run counters of the stars commands.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons for UnstarFailures.
const (
	ReasonPermission = "permission"
	ReasonStatus     = "status"
	ReasonTransport  = "transport"
	ReasonIdentifier = "identifier"
)

// Recorder receives run events from the collector and the remover.
type Recorder interface {
	PageFetched()
	Collected()
	Unstarred()
	UnstarFailed(reason string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) PageFetched()        {}
func (Nop) Collected()          {}
func (Nop) Unstarred()          {}
func (Nop) UnstarFailed(string) {}

// Metrics is a Recorder backed by Prometheus counters on a private
// registry, so the textfile stays free of process and runtime metrics.
type Metrics struct {
	PagesFetched     prometheus.Counter
	CollectedTotal   prometheus.Counter
	UnstarredTotal   prometheus.Counter
	UnstarFailures   *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

// New returns a Metrics with zeroed counters.
func New() *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stars_pages_fetched_total",
			Help: "Total number of starred-list pages fetched, including the final empty page",
		}),
		CollectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stars_collected_total",
			Help: "Total number of starred repositories written to the report",
		}),
		UnstarredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stars_unstarred_total",
			Help: "Total number of repositories successfully unstarred",
		}),
		UnstarFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stars_unstar_failures_total",
			Help: "Total number of failed unstar attempts by reason",
		}, []string{"reason"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stars_last_run_timestamp_seconds",
			Help: "Unix time at which the last run finished",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.PagesFetched, m.CollectedTotal, m.UnstarredTotal, m.UnstarFailures, m.LastRunTimestamp)
	return m
}

func (m *Metrics) PageFetched() { m.PagesFetched.Inc() }
func (m *Metrics) Collected()   { m.CollectedTotal.Inc() }
func (m *Metrics) Unstarred()   { m.UnstarredTotal.Inc() }

func (m *Metrics) UnstarFailed(reason string) {
	m.UnstarFailures.WithLabelValues(reason).Inc()
}

// WriteTextfile stamps the run end time and writes every counter to path in
// the text exposition format read by node_exporter's textfile collector.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	m.LastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}
