package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bambu"

// Command outcomes.
const (
	OutcomeReply        = "reply"
	OutcomeTimeout      = "timeout"
	OutcomeCanceled     = "canceled"
	OutcomePublishError = "publish_error"
	OutcomeClosed       = "closed"
)

// Drop reasons.
const (
	DropDuplicate = "duplicate"
	DropMalformed = "malformed"
)

// Metrics contains all collectors.
type Metrics struct {
	CommandsSent    *prometheus.CounterVec
	CommandOutcomes *prometheus.CounterVec
	ReplyLatency    *prometheus.HistogramVec
	PendingCommands prometheus.Gauge

	MessagesReceived *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	StateUpdates     prometheus.Counter
	SessionState     prometheus.Gauge

	TransportReconnects prometheus.Counter
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		CommandsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "correlator",
				Name:      "commands_total",
				Help:      "Total number of commands published",
			},
			[]string{"command"},
		),

		CommandOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "correlator",
				Name:      "outcomes_total",
				Help:      "Completed reply-expecting commands by outcome",
			},
			[]string{"command", "outcome"},
		),

		ReplyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "correlator",
				Name:      "reply_latency_seconds",
				Help:      "Time from publish to matched reply",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"command"},
		),

		PendingCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "correlator",
				Name:      "pending",
				Help:      "Commands awaiting a reply",
			},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "messages_total",
				Help:      "Inbound messages by correlator disposition",
			},
			[]string{"disposition"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "dropped_total",
				Help:      "Inbound messages dropped before reaching the state pipeline",
			},
			[]string{"reason"},
		),

		StateUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "state_updates_total",
				Help:      "Non-empty state patches applied",
			},
		),

		SessionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "state",
				Help:      "Session state (0=disconnected, 1=connecting, 2=connected)",
			},
		),

		TransportReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "reconnects_total",
				Help:      "Total number of MQTT reconnect attempts",
			},
		),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CommandsSent, m.CommandOutcomes, m.ReplyLatency, m.PendingCommands,
		m.MessagesReceived, m.MessagesDropped, m.StateUpdates, m.SessionState,
		m.TransportReconnects,
	}
}

// RecordCommandSent increments the published command counter.
func (m *Metrics) RecordCommandSent(command string) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(command).Inc()
}

// RecordOutcome records how a reply-expecting command finished. Latency is
// only observed for replies.
func (m *Metrics) RecordOutcome(command, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.CommandOutcomes.WithLabelValues(command, outcome).Inc()
	if outcome == OutcomeReply {
		m.ReplyLatency.WithLabelValues(command).Observe(latency.Seconds())
	}
}

// RecordPending sets the number of commands awaiting a reply.
func (m *Metrics) RecordPending(n int) {
	if m == nil {
		return
	}
	m.PendingCommands.Set(float64(n))
}

// RecordMessage increments the inbound counter for a disposition.
func (m *Metrics) RecordMessage(disposition string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(disposition).Inc()
}

// RecordDropped increments the dropped counter.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordStateUpdate counts one applied patch.
func (m *Metrics) RecordStateUpdate() {
	if m == nil {
		return
	}
	m.StateUpdates.Inc()
}

// RecordSessionState sets the session state gauge.
func (m *Metrics) RecordSessionState(state int) {
	if m == nil {
		return
	}
	m.SessionState.Set(float64(state))
}

// RecordReconnect counts one reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.TransportReconnects.Inc()
}
