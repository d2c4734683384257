package push_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	pushmodel "github.com/miguelrl/cabina/client/internal/model/push"
	"github.com/miguelrl/cabina/client/internal/model/session"
	"github.com/miguelrl/cabina/client/internal/service/eventlog"
	"github.com/miguelrl/cabina/client/internal/service/push"
)

type recordingSink struct {
	mu        sync.Mutex
	updates   []session.EmotionalState
	emergency int
}

func (s *recordingSink) ApplyUpdate(next session.EmotionalState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, next)
}

func (s *recordingSink) RaiseEmergency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergency++
}

func (s *recordingSink) snapshot() ([]session.EmotionalState, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]session.EmotionalState, len(s.updates))
	copy(copied, s.updates)
	return copied, s.emergency
}

// pushServer upgrades incoming connections and lets tests feed envelopes.
type pushServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    []*websocket.Conn
	dials    atomic.Int32
	sessions chan string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{sessions: make(chan string, 4)}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ps.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ps.dials.Add(1)
		ps.sessions <- r.URL.Query().Get("session_id")
		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.mu.Unlock()
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http") + "/api/push"
}

func (ps *pushServer) send(t *testing.T, event string, payload any) {
	t.Helper()
	envelope, err := pushmodel.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.conns) == 0 {
		t.Fatal("no subscriber connected")
	}
	if err := ps.conns[len(ps.conns)-1].WriteJSON(envelope); err != nil {
		t.Fatalf("write envelope: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newManager(ps *pushServer, sink push.Sink, trace *eventlog.Log) *push.Manager {
	opts := push.DefaultOptions()
	opts.ReadTimeout = 5 * time.Second
	return push.NewManager(ps.url(), sink, trace, opts)
}

func TestAttachSubscribesWithSessionID(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)
	defer m.Detach()

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	if !m.Attached() {
		t.Fatal("manager must report attached")
	}
	if got := <-ps.sessions; got != "sess-1" {
		t.Fatalf("server saw session_id %q", got)
	}
}

func TestConnectedEventOnlyLogs(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)
	defer m.Detach()

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	<-ps.sessions
	ps.send(t, pushmodel.EventConnected, nil)

	waitFor(t, func() bool { return len(trace.Snapshot()) == 1 })
	updates, emergencies := sink.snapshot()
	if len(updates) != 0 || emergencies != 0 {
		t.Fatalf("connected must not touch state: %d updates, %d emergencies", len(updates), emergencies)
	}
}

func TestStateUpdateReachesSink(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)
	defer m.Detach()

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	<-ps.sessions
	ps.send(t, pushmodel.EventStateUpdate, session.EmotionalState{
		Emotion: "Ansiedad", RiskLevel: session.RiskMedio, Confidence: 0.7,
	})

	waitFor(t, func() bool { updates, _ := sink.snapshot(); return len(updates) == 1 })
	updates, _ := sink.snapshot()
	if updates[0].Emotion != "Ansiedad" || updates[0].RiskLevel != session.RiskMedio || updates[0].Confidence != 0.7 {
		t.Fatalf("unexpected update %+v", updates[0])
	}

	entries := trace.Snapshot()
	if len(entries) != 1 || !strings.Contains(entries[0], "Ansiedad") {
		t.Fatalf("expected trace of the new state, got %v", entries)
	}
}

func TestEmergencyAlertRaisesAndLogs(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)
	defer m.Detach()

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	<-ps.sessions
	ps.send(t, pushmodel.EventEmergencyAlert, session.Incident{IncidentID: "X1"})

	waitFor(t, func() bool { _, emergencies := sink.snapshot(); return emergencies == 1 })
	updates, _ := sink.snapshot()
	if len(updates) != 0 {
		t.Fatal("an alert must not replace the emotional state")
	}

	entries := trace.Snapshot()
	if len(entries) != 1 || !strings.Contains(entries[0], eventlog.AlertPrefix) || !strings.Contains(entries[0], "X1") {
		t.Fatalf("expected a marked alert entry referencing X1, got %v", entries)
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)
	defer m.Detach()

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("first Attach err: %v", err)
	}
	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("second Attach err: %v", err)
	}
	<-ps.sessions

	ps.send(t, pushmodel.EventStateUpdate, session.EmotionalState{
		Emotion: "Tristeza", RiskLevel: session.RiskMedio, Confidence: 0.5,
	})
	waitFor(t, func() bool { updates, _ := sink.snapshot(); return len(updates) >= 1 })
	// Give a duplicate delivery a chance to show up before asserting.
	time.Sleep(50 * time.Millisecond)

	if updates, _ := sink.snapshot(); len(updates) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(updates))
	}
	if got := ps.dials.Load(); got != 1 {
		t.Fatalf("expected a single dial, got %d", got)
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()
	m := newManager(ps, sink, trace)

	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	<-ps.sessions

	m.Detach()
	if m.Attached() {
		t.Fatal("manager must report detached")
	}

	// Frames written after detach must never reach the sink.
	ps.mu.Lock()
	conn := ps.conns[len(ps.conns)-1]
	ps.mu.Unlock()
	envelope, _ := pushmodel.NewEnvelope(pushmodel.EventEmergencyAlert, session.Incident{IncidentID: "late"})
	conn.WriteJSON(envelope)

	time.Sleep(50 * time.Millisecond)
	if _, emergencies := sink.snapshot(); emergencies != 0 {
		t.Fatal("post-detach frame must be dropped")
	}
}

func TestServerCloseStopsPingLoop(t *testing.T) {
	ps := newPushServer(t)
	sink := &recordingSink{}
	trace := eventlog.New()

	opts := push.DefaultOptions()
	opts.ReadTimeout = 5 * time.Second
	// With an hour between pings, a ping loop that only winds down on its
	// next tick would be observable as a leaked goroutine below.
	opts.PingInterval = time.Hour
	m := push.NewManager(ps.url(), sink, trace, opts)
	defer m.Detach()

	baseline := runtime.NumGoroutine()
	if err := m.Attach(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	<-ps.sessions

	// The service drops the connection; both loops must exit on their own.
	ps.mu.Lock()
	ps.conns[len(ps.conns)-1].Close()
	ps.mu.Unlock()

	waitFor(t, func() bool { return runtime.NumGoroutine() <= baseline })
}

func TestDetachWithoutAttachIsNoop(t *testing.T) {
	m := push.NewManager("ws://localhost:1/api/push", &recordingSink{}, eventlog.New(), push.DefaultOptions())
	m.Detach()
	if m.Attached() {
		t.Fatal("detached manager must stay detached")
	}
}

func TestAttachFailsWhenServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m := push.NewManager("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/push", &recordingSink{}, eventlog.New(), push.DefaultOptions())
	if err := m.Attach(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected dial failure")
	}
	if m.Attached() {
		t.Fatal("failed attach must leave the manager detached")
	}
}
