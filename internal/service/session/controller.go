// Package session holds the lifecycle of the single analysis session and
// gates every other component on it: the push channel is attached exactly
// while a session id exists, and chat submissions are only accepted while
// the session is active.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	model "github.com/miguelrl/cabina/client/internal/model/session"
	chatseq "github.com/miguelrl/cabina/client/internal/service/chat"
	"github.com/miguelrl/cabina/client/internal/service/eventlog"
	"github.com/miguelrl/cabina/client/internal/service/state"
)

var (
	// ErrSessionActive rejects a start while a session already exists.
	ErrSessionActive = errors.New("session already active")
	// ErrNoSession rejects an end without an active session.
	ErrNoSession = errors.New("no active session")
)

// Gateway covers the session-control calls the controller issues.
type Gateway interface {
	StartSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, sessionID string) (model.Summary, error)
}

// PushChannel is the attach/detach surface of the push channel manager.
type PushChannel interface {
	Attach(ctx context.Context, sessionID string) error
	Detach()
	Attached() bool
}

// Controller is the client core's facade: commands in, read-only
// snapshots out. One instance manages exactly one session context.
type Controller struct {
	gw         Gateway
	channel    PushChannel
	reconciler *state.Reconciler
	sequencer  *chatseq.Sequencer
	trace      *eventlog.Log

	// opMu serializes start/end transitions; stateMu guards the session
	// snapshot so reads never block on an in-flight network call.
	opMu    sync.Mutex
	stateMu sync.RWMutex
	current model.Session
}

// NewController wires the core together.
func NewController(gw Gateway, channel PushChannel, reconciler *state.Reconciler, sequencer *chatseq.Sequencer, trace *eventlog.Log) *Controller {
	return &Controller{
		gw:         gw,
		channel:    channel,
		reconciler: reconciler,
		sequencer:  sequencer,
		trace:      trace,
		current:    model.Session{Status: model.StatusIdle},
	}
}

// StartSession opens a new analysis session. On success the emotional
// state, emergency flag, transcript and trace are reset, the session
// becomes active and the push channel is attached. On failure everything
// stays idle and the push channel stays detached.
func (c *Controller) StartSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Session().Active() {
		return ErrSessionActive
	}

	id, err := c.gw.StartSession(ctx)
	if err != nil {
		return err
	}

	c.reconciler.Reset()
	c.sequencer.Begin()
	c.trace.Reset()
	c.trace.Appendf("Sesión %s iniciada. Esperando datos en tiempo real...", id)

	c.stateMu.Lock()
	c.current = model.Session{ID: id, Status: model.StatusActive}
	c.stateMu.Unlock()

	if err := c.channel.Attach(ctx, id); err != nil {
		// A channel failure never governs the session lifecycle; the
		// session stays active and the failure is only reported.
		log.Printf("[session] push channel attach failed: %v", err)
		c.trace.Appendf("No se pudo conectar el canal de eventos: %v", err)
	}

	return nil
}

// EndSession closes the current session. On success the session returns
// to idle, the push channel is detached and the emergency flag is
// cleared; on failure the session stays active so the caller can retry.
func (c *Controller) EndSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	current := c.Session()
	if !current.Active() {
		return ErrNoSession
	}

	summary, err := c.gw.EndSession(ctx, current.ID)
	if err != nil {
		return err
	}

	// Stop accepting chat first so in-flight responses resolve into
	// nothing, then tear the channel down before dropping the id.
	c.sequencer.End()
	c.channel.Detach()
	c.reconciler.Reset()

	c.stateMu.Lock()
	c.current = model.Session{Status: model.StatusIdle}
	c.stateMu.Unlock()

	c.trace.Appendf("Sesión %s finalizada. (Duración: %.0fs)", current.ID, summary.DurationSeconds)
	return nil
}

// SubmitChat hands the text to the sequencer. Blank input or an idle
// session make it a no-op; the returned bool tells whether a request was
// issued.
func (c *Controller) SubmitChat(ctx context.Context, text string) bool {
	return c.sequencer.Submit(ctx, text)
}

// Session returns the current session snapshot.
func (c *Controller) Session() model.Session {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.current
}

// State returns the latest reconciled emotional state.
func (c *Controller) State() model.EmotionalState {
	return c.reconciler.Current()
}

// Emergency reports the sticky emergency flag.
func (c *Controller) Emergency() bool {
	return c.reconciler.Emergency()
}

// History returns the chat transcript in append order.
func (c *Controller) History() []model.Exchange {
	return c.sequencer.History()
}

// Trace returns the connection log in append order.
func (c *Controller) Trace() []string {
	return c.trace.Snapshot()
}
