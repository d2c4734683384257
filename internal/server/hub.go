package server

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	pushmodel "github.com/miguelrl/cabina/client/internal/model/push"
)

// Hub fans push events out to the subscribed booth clients. One
// subscriber per session id; a new subscription for the same session
// replaces the previous connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	// writeMu serializes frame writes; gorilla allows one writer at a
	// time and both the analyzer loop and the emergency endpoint send.
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

// Subscribe registers the connection for a session and acknowledges it
// with a "connected" event.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	if old, exists := h.conns[sessionID]; exists {
		old.Close()
	}
	h.conns[sessionID] = conn
	h.mu.Unlock()

	h.send(sessionID, conn, pushmodel.Envelope{Event: pushmodel.EventConnected})
}

// Unsubscribe drops and closes the session's connection.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, exists := h.conns[sessionID]; exists {
		conn.Close()
		delete(h.conns, sessionID)
	}
}

// remove drops the connection only while it is still the session's
// current subscriber. A drain goroutine for a replaced connection must
// not evict the replacement.
func (h *Hub) remove(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, exists := h.conns[sessionID]; exists && current == conn {
		conn.Close()
		delete(h.conns, sessionID)
	}
}

// Broadcast delivers one event to the session's subscriber, if any.
func (h *Hub) Broadcast(sessionID, event string, payload any) {
	envelope, err := pushmodel.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("[hub] marshal %s payload: %v", event, err)
		return
	}

	h.mu.RLock()
	conn := h.conns[sessionID]
	h.mu.RUnlock()
	if conn == nil {
		return
	}
	h.send(sessionID, conn, envelope)
}

// CloseAll drops every subscriber, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, conn := range h.conns {
		conn.Close()
		delete(h.conns, sessionID)
	}
}

func (h *Hub) send(sessionID string, conn *websocket.Conn, envelope pushmodel.Envelope) {
	h.writeMu.Lock()
	err := conn.WriteJSON(envelope)
	h.writeMu.Unlock()
	if err != nil {
		log.Printf("[hub] write to session %s failed: %v", sessionID, err)
		h.remove(sessionID, conn)
	}
}
