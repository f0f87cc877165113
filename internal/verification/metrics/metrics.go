package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
// Tracks session lifecycle counts, callback interpretation outcomes, and
// notification delivery per channel.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	CallbacksReceived  *prometheus.CounterVec
	CallbacksRejected  *prometheus.CounterVec
	DecisionsApplied   *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	CallbackDuration   prometheus.Histogram
	StartDuration      prometheus.Histogram
	NotifyDuration     prometheus.Histogram
	UnmatchedCallbacks prometheus.Counter
}

// New creates a new Metrics instance with all verification module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veribridge_sessions_started_total",
			Help: "Total number of verification sessions started",
		}),
		CallbacksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veribridge_callbacks_received_total",
			Help: "Callbacks received, by resolution (applied, repeat, ignored)",
		}, []string{"resolution"}),
		CallbacksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veribridge_callbacks_rejected_total",
			Help: "Callbacks rejected before interpretation, by cause (signature, malformed)",
		}, []string{"cause"}),
		DecisionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veribridge_decisions_applied_total",
			Help: "Decisions applied to sessions, by outcome",
		}, []string{"outcome"}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veribridge_notifications_total",
			Help: "Outcome notifications, by channel and result (delivered, failed)",
		}, []string{"channel", "result"}),
		CallbackDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veribridge_callback_duration_seconds",
			Help:    "Duration of callback handling end to end",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		StartDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veribridge_start_duration_seconds",
			Help:    "Duration of session start including the provider round trip",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		NotifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veribridge_notify_duration_seconds",
			Help:    "Duration of outcome notification delivery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		UnmatchedCallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veribridge_unmatched_callbacks_total",
			Help: "Authenticated callbacks whose token matched no known session",
		}),
	}
}

// IncrementSessionsStarted records a successful session start.
func (m *Metrics) IncrementSessionsStarted() {
	m.SessionsStarted.Inc()
}

// RecordCallback records a handled callback and its resolution.
func (m *Metrics) RecordCallback(resolution string) {
	m.CallbacksReceived.WithLabelValues(resolution).Inc()
}

// RecordCallbackRejected records a callback rejected before interpretation.
func (m *Metrics) RecordCallbackRejected(cause string) {
	m.CallbacksRejected.WithLabelValues(cause).Inc()
}

// RecordDecision records a decision applied to a session.
func (m *Metrics) RecordDecision(outcome string) {
	m.DecisionsApplied.WithLabelValues(outcome).Inc()
}

// RecordNotification records one notification attempt result.
func (m *Metrics) RecordNotification(channel, result string) {
	m.Notifications.WithLabelValues(channel, result).Inc()
}

// IncrementUnmatched records an authenticated callback with no session.
func (m *Metrics) IncrementUnmatched() {
	m.UnmatchedCallbacks.Inc()
}

// ObserveCallback records the duration of callback handling.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCallback(start time.Time) {
	m.CallbackDuration.Observe(time.Since(start).Seconds())
}

// ObserveStart records the duration of a session start.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStart(start time.Time) {
	m.StartDuration.Observe(time.Since(start).Seconds())
}

// ObserveNotify records the duration of an outcome notification.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveNotify(start time.Time) {
	m.NotifyDuration.Observe(time.Since(start).Seconds())
}
