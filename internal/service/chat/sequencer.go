// Package chat orders user-submitted intervention messages against their
// asynchronous bot responses. Responses append in resolution order:
// whichever request resolves first is shown first, matching the original
// booth behavior. Responses resolving after the session ended are
// suppressed.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/miguelrl/cabina/client/internal/model/session"
	"github.com/miguelrl/cabina/client/internal/service/gateway"
)

// ConnectionErrorMessage is the fixed text shown when the chat request
// could not reach the service.
const ConnectionErrorMessage = "Error de conexión con el bot."

// Gateway is the single chat operation the sequencer needs.
type Gateway interface {
	Chat(ctx context.Context, message string) (string, error)
}

// Sequencer tracks in-flight chat requests for the current session.
// Multiple submissions may be pending at once; each resolves
// independently.
type Sequencer struct {
	gw Gateway

	mu      sync.Mutex
	history []session.Exchange
	epoch   uint64
	active  bool
	now     func() time.Time
}

// NewSequencer creates an idle sequencer.
func NewSequencer(gw Gateway) *Sequencer {
	return &Sequencer{gw: gw, now: time.Now}
}

// Begin clears the transcript and accepts submissions for a new session.
func (s *Sequencer) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.active = true
	s.history = nil
}

// End stops accepting submissions. Requests still pending resolve into
// nothing: their session is gone.
func (s *Sequencer) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Submit appends the user exchange and issues the chat request. Blank
// input or an inactive session make the submission a no-op and the
// returned bool false.
func (s *Sequencer) Submit(ctx context.Context, text string) bool {
	s.mu.Lock()
	if strings.TrimSpace(text) == "" || !s.active {
		s.mu.Unlock()
		return false
	}
	submittedEpoch := s.epoch
	// The text is kept as submitted; trimming is only an emptiness check.
	s.history = append(s.history, session.Exchange{
		Role:      session.RoleUser,
		Content:   text,
		Timestamp: s.now(),
	})
	s.mu.Unlock()

	go s.resolve(ctx, submittedEpoch, text)
	return true
}

func (s *Sequencer) resolve(ctx context.Context, submittedEpoch uint64, message string) {
	reply, err := s.gw.Chat(ctx, message)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.epoch != submittedEpoch {
		log.Printf("[chat] dropping response resolved after session end")
		return
	}

	exchange := session.Exchange{Role: session.RoleBot, Content: reply, Timestamp: s.now()}
	if err != nil {
		exchange.Role = session.RoleError
		exchange.Content = ConnectionErrorMessage
		var botErr *gateway.BotError
		if errors.As(err, &botErr) {
			exchange.Content = botErr.Message
		}
	}
	s.history = append(s.history, exchange)
}

// History returns a copy of the transcript in append order.
func (s *Sequencer) History() []session.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]session.Exchange, len(s.history))
	copy(copied, s.history)
	return copied
}
