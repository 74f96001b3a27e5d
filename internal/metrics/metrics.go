// Package metrics exposes delivery counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Delivery outcomes
const (
	OutcomePushed        = "pushed"
	OutcomeQueuedOffline = "queued_offline"
	OutcomeFailed        = "failed"

	OutcomeRelayed = "relayed"
	OutcomeDropped = "dropped"
)

type Metrics struct {
	MessagesSent  *prometheus.CounterVec
	Deliveries    *prometheus.CounterVec
	StatusUpdates *prometheus.CounterVec
	Connections   prometheus.Gauge
	TypingSignals *prometheus.CounterVec
	FramesDropped prometheus.Counter
}

// New registers every collector on reg. Pass nil to get unregistered
// collectors, which tests use to avoid clashing on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted, by conversation kind.",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Fan-out attempts, by outcome.",
		}, []string{"outcome"}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Status acknowledgements, by target status and whether they advanced the message.",
		}, []string{"status", "applied"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Live websocket connections held by this instance.",
		}),
		TypingSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_signals_total",
			Help:      "Typing signals, by outcome.",
		}, []string{"outcome"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frames_dropped_total",
			Help:      "Outbound frames dropped because a client's send buffer was full.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.MessagesSent, m.Deliveries, m.StatusUpdates, m.Connections, m.TypingSignals, m.FramesDropped)
	}
	return m
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}
