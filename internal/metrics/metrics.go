package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exstem"

// Metrics holds the collectors of the exam lifecycle. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	statusTransitions *prometheus.CounterVec
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	finalizeConflicts prometheus.Counter
	sweepFailures     prometheus.Counter
	sweepDuration     prometheus.Histogram
	pendingTimers     prometheus.Gauge
	timerFailures     prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry together
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exam_status_transitions_total",
			Help:      "Exam status changes applied, by target status.",
		}, []string{"status"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Exam sessions opened.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Exam sessions closed, by path (submitted or auto).",
		}, []string{"path"}),
		finalizeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_finalize_conflicts_total",
			Help:      "Terminal writes skipped because the session was already completed.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizer_sweep_failures_total",
			Help:      "Sessions the auto-finalizer failed to close in a sweep.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalizer_sweep_duration_seconds",
			Help:      "Duration of auto-finalizer sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		pendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_pending_timers",
			Help:      "Exam boundary timers waiting to fire.",
		}),
		timerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_timer_failures_total",
			Help:      "Boundary timer callbacks that failed or panicked.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.statusTransitions,
		m.sessionsStarted,
		m.sessionsCompleted,
		m.finalizeConflicts,
		m.sweepFailures,
		m.sweepDuration,
		m.pendingTimers,
		m.timerFailures,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionCompleted(auto bool) {
	if m == nil {
		return
	}
	path := "submitted"
	if auto {
		path = "auto"
	}
	m.sessionsCompleted.WithLabelValues(path).Inc()
}

func (m *Metrics) FinalizeConflict() {
	if m == nil {
		return
	}
	m.finalizeConflicts.Inc()
}

func (m *Metrics) SweepFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepFailures.Add(float64(n))
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}

func (m *Metrics) SetPendingTimers(n int) {
	if m == nil {
		return
	}
	m.pendingTimers.Set(float64(n))
}

func (m *Metrics) TimerFailed() {
	if m == nil {
		return
	}
	m.timerFailures.Inc()
}
