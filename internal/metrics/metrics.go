// Package metrics exposes Prometheus collectors for room and connection
// activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/classboard/internal/protocol"
)

const namespace = "classboard"

// Metrics holds the collectors. It implements room.Observer.
type Metrics struct {
	registry *prometheus.Registry

	participants     prometheus.Gauge
	joinsTotal       *prometheus.CounterVec
	linesDelivered   *prometheus.CounterVec
	linesDropped     *prometheus.CounterVec
	pollsCreated     prometheus.Counter
	votesTotal       *prometheus.CounterVec
	connections      *prometheus.GaugeVec
	inboundDiscarded *prometheus.CounterVec
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Number of participants currently in the room",
		}),
		joinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Total number of admitted participants by role",
		}, []string{"role"}),
		linesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_delivered_total",
			Help:      "Lines queued to participants by message kind",
		}, []string{"kind"}),
		linesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_dropped_total",
			Help:      "Lines a participant could not accept by message kind",
		}, []string{"kind"}),
		pollsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_created_total",
			Help:      "Total number of polls created",
		}),
		votesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Poll votes by outcome",
		}, []string{"outcome"}),
		connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open connections by transport",
		}, []string{"transport"}),
		inboundDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_discarded_total",
			Help:      "Inbound lines discarded before reaching the room",
		}, []string{"reason"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MemberJoined(teacher bool) {
	m.participants.Inc()
	role := protocol.RoleStudent
	if teacher {
		role = protocol.RoleTeacher
	}
	m.joinsTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) MemberLeft() {
	m.participants.Dec()
}

func (m *Metrics) Broadcast(kind protocol.Kind, delivered, dropped int) {
	label := kind.String()
	if delivered > 0 {
		m.linesDelivered.WithLabelValues(label).Add(float64(delivered))
	}
	if dropped > 0 {
		m.linesDropped.WithLabelValues(label).Add(float64(dropped))
	}
}

func (m *Metrics) PollCreated() {
	m.pollsCreated.Inc()
}

func (m *Metrics) VoteCast(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.votesTotal.WithLabelValues(outcome).Inc()
}

// ConnectionOpened records a new connection on transport ("tcp" or "websocket").
func (m *Metrics) ConnectionOpened(transport string) {
	m.connections.WithLabelValues(transport).Inc()
}

func (m *Metrics) ConnectionClosed(transport string) {
	m.connections.WithLabelValues(transport).Dec()
}

// InboundDiscarded records a line dropped by the connection handler, e.g. for
// being malformed or over the rate limit.
func (m *Metrics) InboundDiscarded(reason string) {
	m.inboundDiscarded.WithLabelValues(reason).Inc()
}
