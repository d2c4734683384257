package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	model "github.com/miguelrl/cabina/client/internal/model/session"
	chatseq "github.com/miguelrl/cabina/client/internal/service/chat"
	"github.com/miguelrl/cabina/client/internal/service/eventlog"
	"github.com/miguelrl/cabina/client/internal/service/gateway"
	sessionsvc "github.com/miguelrl/cabina/client/internal/service/session"
	"github.com/miguelrl/cabina/client/internal/service/state"
)

type fakeGateway struct {
	startID  string
	startErr error
	endErr   error
	duration float64
	chatErr  error
}

func (g *fakeGateway) StartSession(context.Context) (string, error) {
	return g.startID, g.startErr
}

func (g *fakeGateway) EndSession(context.Context, string) (model.Summary, error) {
	if g.endErr != nil {
		return model.Summary{}, g.endErr
	}
	return model.Summary{DurationSeconds: g.duration}, nil
}

func (g *fakeGateway) Chat(context.Context, string) (string, error) {
	return "ok", g.chatErr
}

type fakeChannel struct {
	attached  bool
	attachID  string
	attachErr error
	attaches  int
	detaches  int
}

func (c *fakeChannel) Attach(_ context.Context, sessionID string) error {
	c.attaches++
	if c.attachErr != nil {
		return c.attachErr
	}
	c.attached = true
	c.attachID = sessionID
	return nil
}

func (c *fakeChannel) Detach() {
	c.detaches++
	c.attached = false
}

func (c *fakeChannel) Attached() bool { return c.attached }

func newController(gw *fakeGateway, ch *fakeChannel) (*sessionsvc.Controller, *state.Reconciler, *chatseq.Sequencer) {
	reconciler := state.New()
	sequencer := chatseq.NewSequencer(gw)
	trace := eventlog.New()
	return sessionsvc.NewController(gw, ch, reconciler, sequencer, trace), reconciler, sequencer
}

func assertInvariant(t *testing.T, c *sessionsvc.Controller, ch *fakeChannel) {
	t.Helper()
	if (c.Session().ID != "") != ch.Attached() {
		t.Fatalf("channel attachment %v does not match session id %q", ch.Attached(), c.Session().ID)
	}
}

func TestStartSessionSuccess(t *testing.T) {
	gw := &fakeGateway{startID: "sess-1"}
	ch := &fakeChannel{}
	c, _, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession err: %v", err)
	}

	if got := c.Session(); got.Status != model.StatusActive || got.ID != "sess-1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if ch.attachID != "sess-1" {
		t.Fatalf("channel attached with id %q", ch.attachID)
	}
	if c.Emergency() {
		t.Fatal("emergency must start false")
	}
	trace := c.Trace()
	if len(trace) == 0 || !strings.Contains(trace[0], "sess-1") || !strings.Contains(trace[0], "iniciada") {
		t.Fatalf("expected start entry, got %v", trace)
	}
	assertInvariant(t, c, ch)
}

func TestStartSessionFailureStaysIdle(t *testing.T) {
	gw := &fakeGateway{startErr: gateway.ErrServiceUnavailable}
	ch := &fakeChannel{}
	c, _, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); !errors.Is(err, gateway.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if got := c.Session(); got.Status != model.StatusIdle || got.ID != "" {
		t.Fatalf("session must stay idle, got %+v", got)
	}
	if ch.attaches != 0 {
		t.Fatal("channel must not be attached on start failure")
	}
	assertInvariant(t, c, ch)
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	gw := &fakeGateway{startID: "sess-1"}
	ch := &fakeChannel{}
	c, _, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	if err := c.StartSession(context.Background()); !errors.Is(err, sessionsvc.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestStartClearsEmergencyAndTranscript(t *testing.T) {
	gw := &fakeGateway{startID: "sess-2"}
	ch := &fakeChannel{}
	c, reconciler, sequencer := newController(gw, ch)

	reconciler.RaiseEmergency()
	sequencer.Begin()
	sequencer.Submit(context.Background(), "viejo mensaje")

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	if c.Emergency() {
		t.Fatal("start must clear the emergency flag")
	}
	if len(c.History()) != 0 {
		t.Fatal("start must clear the transcript")
	}
}

func TestEndSessionSuccess(t *testing.T) {
	gw := &fakeGateway{startID: "sess-1", duration: 95}
	ch := &fakeChannel{}
	c, reconciler, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	reconciler.RaiseEmergency()

	if err := c.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession err: %v", err)
	}
	if got := c.Session(); got.Status != model.StatusIdle || got.ID != "" {
		t.Fatalf("expected idle session, got %+v", got)
	}
	if c.Emergency() {
		t.Fatal("end must clear the emergency flag")
	}
	if ch.detaches != 1 {
		t.Fatalf("expected one detach, got %d", ch.detaches)
	}
	trace := c.Trace()
	last := trace[len(trace)-1]
	if !strings.Contains(last, "finalizada") || !strings.Contains(last, "95") {
		t.Fatalf("expected end entry with duration, got %q", last)
	}
	assertInvariant(t, c, ch)
}

func TestEndSessionFailureRetainsSession(t *testing.T) {
	gw := &fakeGateway{startID: "sess-1"}
	ch := &fakeChannel{}
	c, _, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession err: %v", err)
	}
	gw.endErr = gateway.ErrServiceUnavailable

	if err := c.EndSession(context.Background()); !errors.Is(err, gateway.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if got := c.Session(); got.Status != model.StatusActive || got.ID != "sess-1" {
		t.Fatalf("failed end must retain the session, got %+v", got)
	}
	if ch.detaches != 0 {
		t.Fatal("failed end must not detach the channel")
	}

	// Retry succeeds.
	gw.endErr = nil
	if err := c.EndSession(context.Background()); err != nil {
		t.Fatalf("retry err: %v", err)
	}
	assertInvariant(t, c, ch)
}

func TestEndWithoutSessionIsRejected(t *testing.T) {
	c, _, _ := newController(&fakeGateway{}, &fakeChannel{})

	if err := c.EndSession(context.Background()); !errors.Is(err, sessionsvc.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestSubmitChatRequiresActiveSession(t *testing.T) {
	c, _, _ := newController(&fakeGateway{startID: "sess-1"}, &fakeChannel{})

	if c.SubmitChat(context.Background(), "hi") {
		t.Fatal("chat without session must be a no-op")
	}
	if len(c.History()) != 0 {
		t.Fatal("no exchange may be appended")
	}
}

func TestAttachFailureKeepsSessionActive(t *testing.T) {
	gw := &fakeGateway{startID: "sess-1"}
	ch := &fakeChannel{attachErr: errors.New("dial tcp: refused")}
	c, _, _ := newController(gw, ch)

	if err := c.StartSession(context.Background()); err != nil {
		t.Fatalf("channel failure must not fail the start, got %v", err)
	}
	if got := c.Session(); !got.Active() {
		t.Fatalf("session must stay active, got %+v", got)
	}
	found := false
	for _, entry := range c.Trace() {
		if strings.Contains(entry, "canal de eventos") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a trace entry for the channel failure, got %v", c.Trace())
	}
}
