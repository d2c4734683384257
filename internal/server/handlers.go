package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	middlewarePkg "github.com/miguelrl/cabina/client/internal/middleware"
	pushmodel "github.com/miguelrl/cabina/client/internal/model/push"
	"github.com/miguelrl/cabina/client/internal/model/session"
	"github.com/miguelrl/cabina/client/pkg/utils"
)

// crisisLine is handed out when the emergency protocol fires.
const crisisLine = "800-911-2000"

// Handler exposes the dev analyzer's REST and push surface.
type Handler struct {
	sessions *Sessions
	hub      *Hub
	bot      Bot
	upgrader websocket.Upgrader
}

// NewHandler wires the handler set.
func NewHandler(sessions *Sessions, hub *Hub, bot Bot) *Handler {
	return &Handler{
		sessions: sessions,
		hub:      hub,
		bot:      bot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The booth client may be served from anywhere during demos.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// NewRouter mounts all analyzer routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Post("/session/start", h.handleStart)
		api.Post("/session/end", h.handleEnd)
		api.Post("/chat", h.handleChat)
		api.Post("/emergency", h.handleEmergency)
		api.Get("/state", h.handleState)
		api.Get("/push", h.handlePush)
		api.Get("/stream", h.handleStream)
	})

	return r
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.Start()
	if err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	log.Printf("[api] session started id=%s", id)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	// An empty body ends whichever session is running.
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		payload.SessionID = ""
	}

	ended := h.sessions.Current()
	summary, err := h.sessions.End(payload.SessionID)
	if err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}

	h.hub.Unsubscribe(ended)
	log.Printf("[api] session ended id=%s duration=%.0fs", ended, summary.DurationSeconds)
	utils.RespondJSON(w, http.StatusOK, map[string]any{"session_data": summary})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.bot.Reply(r.Context(), payload.Message)
	if err != nil {
		log.Printf("[api] bot failure: %v", err)
		utils.RespondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "el bot no pudo responder"})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (h *Handler) handleEmergency(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.Current()
	if sessionID == "" {
		utils.RespondError(w, http.StatusConflict, ErrNoSession.Error())
		return
	}

	incident := session.Incident{IncidentID: uuid.NewString()}
	h.hub.Broadcast(sessionID, pushmodel.EventEmergencyAlert, incident)
	log.Printf("[api] emergency protocol activated incident=%s", incident.IncidentID)

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":      "emergency_activated",
		"action":      "calling_crisis_line",
		"number":      crisisLine,
		"incident_id": incident.IncidentID,
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.State())
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" || sessionID != h.sessions.Current() {
		utils.RespondError(w, http.StatusForbidden, "unknown session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[push] upgrade failed: %v", err)
		return
	}
	log.Printf("[push] subscriber connected session=%s", sessionID)
	h.hub.Subscribe(sessionID, conn)

	// Drain the connection so pings and the peer's close are processed.
	// Removal is tied to this goroutine's own connection so a stale
	// drain cannot tear down a replacement subscription.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.remove(sessionID, conn)
				log.Printf("[push] subscriber gone session=%s", sessionID)
				return
			}
		}
	}()
}

// handleStream is the SSE fallback for clients that cannot hold a
// websocket: it replays the current state on a fixed cadence.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	ctx := r.Context()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	utils.SendSSEEvent(w, flusher, pushmodel.EventConnected, map[string]string{"status": "stream established"})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.sessions.Current() == "" {
				continue
			}
			utils.SendSSEEvent(w, flusher, pushmodel.EventStateUpdate, h.sessions.State())
		}
	}
}
