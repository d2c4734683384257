package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miguelrl/cabina/client/internal/model/session"
)

var (
	// ErrSessionRunning rejects a start while an analysis is running.
	ErrSessionRunning = errors.New("analysis session already running")
	// ErrNoSession rejects calls that need a running session.
	ErrNoSession = errors.New("no analysis session running")
)

// Sessions tracks the single running analysis session of the dev
// analyzer, the way the original booth service ran one analysis at a
// time.
type Sessions struct {
	mu      sync.RWMutex
	id      string
	started time.Time
	state   session.EmotionalState
	now     func() time.Time
}

// NewSessions creates an idle store.
func NewSessions() *Sessions {
	return &Sessions{now: time.Now, state: session.DefaultState()}
}

// Start opens a session and returns its server-assigned id.
func (s *Sessions) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return "", ErrSessionRunning
	}
	s.id = uuid.NewString()
	s.started = s.now()
	s.state = session.DefaultState()
	return s.id, nil
}

// End closes the running session and reports its duration.
func (s *Sessions) End(sessionID string) (session.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" || (sessionID != "" && sessionID != s.id) {
		return session.Summary{}, ErrNoSession
	}
	summary := session.Summary{DurationSeconds: s.now().Sub(s.started).Seconds()}
	s.id = ""
	s.state = session.DefaultState()
	return summary, nil
}

// Current returns the running session id, empty when idle.
func (s *Sessions) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetState records the latest analysis result for polling clients.
func (s *Sessions) SetState(next session.EmotionalState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// State returns the latest analysis result.
func (s *Sessions) State() session.EmotionalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
