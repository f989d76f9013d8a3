// Package metrics exports lobby events to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"badc0de.net/pkg/go-lobby/lobby"
	tnet "badc0de.net/pkg/go-lobby/net"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observer implements lobby.Observer on top of Prometheus collectors.
type Observer struct {
	sessions       prometheus.Gauge
	sessionsClosed *prometheus.CounterVec
	segments       *prometheus.CounterVec
	handshakes     prometheus.Counter
	ipcMessages    *prometheus.CounterVec
	errors         *prometheus.CounterVec
}

var _ lobby.Observer = (*Observer)(nil)

// NewObserver registers lobby metrics on the registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lobby_sessions",
			Help: "Current session count.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_sessions_closed_total",
			Help: "Closed sessions by reason.",
		}, []string{"reason"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_segments_total",
			Help: "Inbound segments by type.",
		}, []string{"type"}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lobby_handshakes_total",
			Help: "Completed encryption handshakes.",
		}),
		ipcMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_ipc_messages_total",
			Help: "Inbound IPC messages by type and whether a handler was registered.",
		}, []string{"type", "result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lobby_session_errors_total",
			Help: "Session errors by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		o.sessions,
		o.sessionsClosed,
		o.segments,
		o.handshakes,
		o.ipcMessages,
		o.errors,
	)
	return o
}

// SessionOpened counts a new session.
func (o *Observer) SessionOpened() {
	o.sessions.Inc()
}

// SessionClosed counts a closed session under reason, as named by
// lobby.ErrorKind, or "eof" for a clean disconnect.
func (o *Observer) SessionClosed(reason string) {
	o.sessions.Dec()
	o.sessionsClosed.WithLabelValues(reason).Inc()
}

// Segment counts a segment. Types outside the protocol share one label so a
// misbehaving client cannot grow the label set.
func (o *Observer) Segment(t tnet.SegmentType) {
	label := "unknown"
	if t.Known() {
		label = t.String()
	}
	o.segments.WithLabelValues(label).Inc()
}

// Handshake counts a completed encryption handshake.
func (o *Observer) Handshake() {
	o.handshakes.Inc()
}

// IPCMessage counts an IPC message. Unhandled types share one label.
func (o *Observer) IPCMessage(ipcType uint16, handled bool) {
	if !handled {
		o.ipcMessages.WithLabelValues("unknown", "unhandled").Inc()
		return
	}
	o.ipcMessages.WithLabelValues(lobby.IPCTypeName(ipcType), "handled").Inc()
}

// Error counts a session error of the given lobby.ErrorKind.
func (o *Observer) Error(kind string) {
	o.errors.WithLabelValues(kind).Inc()
}
