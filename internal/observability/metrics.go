package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's prometheus collectors. All methods are nil-safe.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec

	sweepDuration    prometheus.Histogram
	sweepsSkipped    prometheus.Counter
	itemsChecked     *prometheus.CounterVec
	statusTransition *prometheus.CounterVec
	sweepErrors      *prometheus.CounterVec
	kindsSkipped     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sla_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route, method and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"path", "method", "status"}),

		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_http_request_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),

		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_sweep_duration_seconds",
			Help:    "Duration of full SLA sweeps",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		sweepsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sla_sweeps_skipped_total",
			Help: "Sweep ticks skipped because a sweep was already running",
		}),

		itemsChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_sweep_items_checked_total",
			Help: "Requests evaluated by sweeps by request kind and computed status",
		}, []string{"kind", "status"}),

		statusTransition: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_status_transitions_total",
			Help: "Persisted SLA status changes by request kind and new status",
		}, []string{"kind", "status"}),

		sweepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_sweep_errors_total",
			Help: "Sweep failures by request kind and stage",
		}, []string{"kind", "stage"}), // stage: "load", "update", "notify"

		kindsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_sweep_kinds_skipped_total",
			Help: "Request kinds left unfinished when a sweep hit its deadline",
		}, []string{"kind"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_notifications_total",
			Help: "SLA notifications dispatched by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// RecordRequest observes an HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(path, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(path, method, code).Inc()
}

// ObserveSweep records the duration of a completed sweep.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

// IncSweepSkipped counts a tick dropped by the single-flight guard.
func (m *Metrics) IncSweepSkipped() {
	if m == nil {
		return
	}
	m.sweepsSkipped.Inc()
}

// IncChecked counts an evaluated request.
func (m *Metrics) IncChecked(kind, status string) {
	if m == nil {
		return
	}
	m.itemsChecked.WithLabelValues(kind, status).Inc()
}

// IncTransition counts a persisted status change.
func (m *Metrics) IncTransition(kind, status string) {
	if m == nil {
		return
	}
	m.statusTransition.WithLabelValues(kind, status).Inc()
}

// IncSweepError counts a sweep failure at stage.
func (m *Metrics) IncSweepError(kind, stage string) {
	if m == nil {
		return
	}
	m.sweepErrors.WithLabelValues(kind, stage).Inc()
}

// IncKindSkipped counts a kind cut short by the sweep deadline.
func (m *Metrics) IncKindSkipped(kind string) {
	if m == nil {
		return
	}
	m.kindsSkipped.WithLabelValues(kind).Inc()
}

// IncNotification counts a notification attempt.
func (m *Metrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}
