package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects client-side connection and stream counters. All
// methods are safe on a nil receiver so instrumentation stays
// optional.
type Metrics struct {
	framesSent        prometheus.Counter
	framesReceived    prometheus.Counter
	sendFailures      prometheus.Counter
	reconnectAttempts prometheus.Counter
	connections       prometheus.Counter
	failures          prometheus.Counter
	pagesLoaded       prometheus.Counter
	decodeFailures    prometheus.Counter
	pendingDepth      prometheus.Gauge
}

// NewMetrics creates and registers the client metric set
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_frames_sent_total",
			Help: "Frames written to the transport",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_frames_received_total",
			Help: "Frames read from the transport",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_send_failures_total",
			Help: "Transport writes that failed and were re-queued",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_reconnect_attempts_total",
			Help: "Reconnection attempts made",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_connections_total",
			Help: "Successful connection establishments",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_connection_failures_total",
			Help: "Terminal connection failures",
		}),
		pagesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_history_pages_loaded_total",
			Help: "History pages fetched into the message window",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sermo_client_frame_decode_failures_total",
			Help: "Inbound frames dropped because they failed to decode",
		}),
		pendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sermo_client_pending_queue_depth",
			Help: "Payloads waiting for the connection to come back",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.framesSent, m.framesReceived, m.sendFailures,
			m.reconnectAttempts, m.connections, m.failures,
			m.pagesLoaded, m.decodeFailures, m.pendingDepth,
		)
	}
	return m
}

func (m *Metrics) frameSent() {
	if m != nil {
		m.framesSent.Inc()
	}
}

func (m *Metrics) frameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) sendFailure() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

func (m *Metrics) reconnectAttempt() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connectionFailed() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *Metrics) pageLoaded() {
	if m != nil {
		m.pagesLoaded.Inc()
	}
}

func (m *Metrics) decodeFailure() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *Metrics) queueDepth(depth int) {
	if m != nil {
		m.pendingDepth.Set(float64(depth))
	}
}
