package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/pipeline"
)

const namespace = "phishguard"

// Metrics holds the Prometheus collectors. Each Metrics owns its registry,
// so several instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	SweepsTotal       prometheus.Counter
	ListFailuresTotal prometheus.Counter
	SweepDuration     prometheus.Histogram
	SessionsListed    prometheus.Gauge
	LastSweep         prometheus.Gauge
	Evaluations       *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	SinkFailures      *prometheus.CounterVec

	mu        sync.RWMutex
	lastSweep Snapshot
}

// Snapshot summarizes the most recent sweep for the health endpoint.
type Snapshot struct {
	SweepID   string    `json:"sweep_id,omitempty"`
	At        time.Time `json:"at"`
	Listed    int       `json:"listed"`
	Phishing  int       `json:"phishing"`
	Benign    int       `json:"benign"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Cancelled int       `json:"cancelled"`
}

// New creates a Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Number of completed sweeps.",
		}),
		ListFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_list_failures_total",
			Help:      "Number of sweeps that failed to list browser sessions.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one sweep over all sessions.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SessionsListed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_listed",
			Help:      "Number of sessions listed by the last sweep.",
		}),
		LastSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}),
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Session evaluations by outcome.",
		}, []string{"outcome"}),
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Classifier verdicts by label.",
		}, []string{"verdict"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_sink_failures_total",
			Help:      "Failed dispatch sink deliveries by sink.",
		}, []string{"sink"}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSweep records a finished sweep.
func (m *Metrics) ObserveSweep(r pipeline.SweepResult) {
	now := time.Now()

	m.SweepsTotal.Inc()
	m.SweepDuration.Observe(r.Duration.Seconds())
	m.SessionsListed.Set(float64(r.Listed))
	m.LastSweep.Set(float64(now.Unix()))
	if r.Cancelled > 0 {
		m.Evaluations.WithLabelValues("cancelled").Add(float64(r.Cancelled))
	}

	m.mu.Lock()
	m.lastSweep = Snapshot{
		SweepID:   r.SweepID,
		At:        now,
		Listed:    r.Listed,
		Phishing:  r.Phishing,
		Benign:    r.Benign,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
		Cancelled: r.Cancelled,
	}
	m.mu.Unlock()
}

// ObserveListFailure records a failed session listing.
func (m *Metrics) ObserveListFailure() {
	m.ListFailuresTotal.Inc()
}

// ObserveEvaluation records the outcome of one evaluation.
func (m *Metrics) ObserveEvaluation(ev *model.Evaluation) {
	m.Evaluations.WithLabelValues(ev.Outcome()).Inc()
	if ev.Err == nil && ev.Classified {
		m.Verdicts.WithLabelValues(ev.Verdict.String()).Inc()
	}
}

// SinkFailed records a failed dispatch sink.
func (m *Metrics) SinkFailed(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// LastSweepSnapshot returns a snapshot of the most recent sweep, and false if no
// sweep has finished yet.
func (m *Metrics) LastSweepSnapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSweep, !m.lastSweep.At.IsZero()
}
