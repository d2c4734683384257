// Package push owns the single push-channel subscription towards the
// analysis service. The connection exists if and only if a session is
// active; attach and detach are explicit transitions driven by the
// session controller, never recomputed from observed state.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pushmodel "github.com/miguelrl/cabina/client/internal/model/push"
	"github.com/miguelrl/cabina/client/internal/model/session"
	"github.com/miguelrl/cabina/client/internal/service/eventlog"
)

// Sink receives reconciled push events. It is a terminal consumer and
// must never call back into this package.
type Sink interface {
	ApplyUpdate(session.EmotionalState)
	RaiseEmergency()
}

// Options tunes the websocket connection.
type Options struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// DefaultOptions mirrors the timeouts used against the analysis service.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     25 * time.Second,
	}
}

// Manager maintains exactly one logical subscription to the push channel.
type Manager struct {
	endpoint string
	sink     Sink
	trace    *eventlog.Log
	opts     Options

	mu        sync.Mutex
	conn      *websocket.Conn
	reactions map[string]func(json.RawMessage)
	done      chan struct{}
}

// NewManager creates a detached manager. endpoint is the websocket URL of
// the push channel, e.g. "ws://localhost:5000/api/push".
func NewManager(endpoint string, sink Sink, trace *eventlog.Log, opts Options) *Manager {
	return &Manager{endpoint: endpoint, sink: sink, trace: trace, opts: opts}
}

// Attach dials the push channel for the given session and starts the read
// loop. Attaching an already-attached manager is a no-op: reactions are
// never registered twice, so each event reconciles exactly once.
func (m *Manager) Attach(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	target, err := url.Parse(m.endpoint)
	if err != nil {
		return fmt.Errorf("invalid push endpoint: %w", err)
	}
	query := target.Query()
	query.Set("session_id", sessionID)
	target.RawQuery = query.Encode()

	dialer := &websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return fmt.Errorf("push channel dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		return nil
	})

	m.conn = conn
	m.reactions = m.buildReactions()
	m.done = make(chan struct{})

	// stop is owned by the read loop: closed on ANY exit, deliberate or
	// not, so the ping loop never outlives its connection.
	stop := make(chan struct{})
	go m.readLoop(conn, m.done, stop)
	go m.pingLoop(conn, stop)

	return nil
}

// Detach deregisters all reactions and then closes the connection, in
// that order, so a final in-flight frame cannot race a torn-down context.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}

	m.reactions = nil
	close(m.done)
	m.conn.Close()
	m.conn = nil
}

// Attached reports whether a subscription currently exists.
func (m *Manager) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) buildReactions() map[string]func(json.RawMessage) {
	return map[string]func(json.RawMessage){
		pushmodel.EventConnected: func(json.RawMessage) {
			m.trace.Appendf("Socket conectado")
		},
		pushmodel.EventStateUpdate: func(data json.RawMessage) {
			var payload session.EmotionalState
			if err := json.Unmarshal(data, &payload); err != nil {
				log.Printf("[push] malformed state_update: %v", err)
				return
			}
			m.sink.ApplyUpdate(payload)
			m.trace.Appendf("Estado: %s (Riesgo: %s)", payload.Emotion, payload.RiskLevel)
		},
		pushmodel.EventEmergencyAlert: func(data json.RawMessage) {
			var incident session.Incident
			if err := json.Unmarshal(data, &incident); err != nil {
				log.Printf("[push] malformed emergency_alert: %v", err)
			}
			m.sink.RaiseEmergency()
			m.trace.Alertf("Incidente ID: %s", incident.IncidentID)
		},
	}
}

// readLoop processes frames in arrival order; reactions run one at a time
// so no two handlers for the same logical event overlap.
func (m *Manager) readLoop(conn *websocket.Conn, done, stop chan struct{}) {
	defer close(stop)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Deliberate detach; the close is expected.
			default:
				// Channel errors are logged only. Session lifecycle is
				// governed by explicit start/end calls, never by the
				// transport, and a stale state is left as-is.
				log.Printf("[push] channel error: %v", err)
				m.trace.Appendf("Canal de eventos interrumpido: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))

		var envelope pushmodel.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Printf("[push] malformed envelope: %v", err)
			continue
		}
		m.dispatch(envelope)
	}
}

func (m *Manager) dispatch(envelope pushmodel.Envelope) {
	m.mu.Lock()
	reaction := m.reactions[envelope.Event]
	m.mu.Unlock()

	if reaction == nil {
		// Either an unknown event or a frame that lost the race against
		// detach; both are dropped.
		return
	}
	reaction(envelope.Data)
}

func (m *Manager) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(m.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
