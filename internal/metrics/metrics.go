package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionPhase tracks the lifecycle phase as a numeric gauge
	// (0=idle, 1=connecting, 2=connected, 3=disconnected, 4=failed).
	ConnectionPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atelier_realtime_connection_phase",
		Help: "Current lifecycle phase (0=idle 1=connecting 2=connected 3=disconnected 4=failed)",
	})

	// ConnectsTotal counts successful session establishments.
	ConnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_realtime_connects_total",
		Help: "Total number of successful session establishments",
	})

	// DisconnectsTotal counts session drops, labeled by drop reason.
	DisconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_disconnects_total",
		Help: "Total number of session drops",
	}, []string{"reason"})

	// HandshakeFailures counts failed dials.
	HandshakeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_realtime_handshake_failures_total",
		Help: "Total number of failed handshakes",
	})

	// ReconnectAttempts counts scheduled reconnection attempts.
	ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_realtime_reconnect_attempts_total",
		Help: "Total number of scheduled reconnection attempts",
	})

	// EventsReceived counts inbound events, labeled by event name.
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_events_received_total",
		Help: "Total number of inbound events",
	}, []string{"event"})

	// EventsSent counts outbound events, labeled by event name.
	EventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_events_sent_total",
		Help: "Total number of outbound events",
	}, []string{"event"})

	// SendsDropped counts outbound operations ignored while not connected.
	SendsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_sends_dropped_total",
		Help: "Total number of outbound operations ignored while not connected",
	}, []string{"event"})

	// SendFailures counts outbound writes rejected by the transport.
	SendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_send_failures_total",
		Help: "Total number of outbound writes rejected by the transport",
	}, []string{"event"})

	// SubscriberPanics counts recovered subscriber callback panics.
	SubscriberPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atelier_realtime_subscriber_panics_total",
		Help: "Total number of recovered subscriber callback panics",
	})

	// ParseFailures counts inbound payloads that failed to decode, labeled
	// by event name.
	ParseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_realtime_parse_failures_total",
		Help: "Total number of inbound payloads that failed to decode",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(
		ConnectionPhase,
		ConnectsTotal,
		DisconnectsTotal,
		HandshakeFailures,
		ReconnectAttempts,
		EventsReceived,
		EventsSent,
		SendsDropped,
		SendFailures,
		SubscriberPanics,
		ParseFailures,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
