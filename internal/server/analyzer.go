package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/miguelrl/cabina/client/internal/analysis/emotion"
	pushmodel "github.com/miguelrl/cabina/client/internal/model/push"
	"github.com/miguelrl/cabina/client/internal/model/session"
)

// Analyzer runs the continuous background analysis while a session is
// active, pushing one state_update per tick and an emergency_alert when
// a segment classifies as critical.
type Analyzer struct {
	sessions *Sessions
	hub      *Hub
	sim      *emotion.Simulator
	interval time.Duration
}

// NewAnalyzer wires the simulated analysis loop.
func NewAnalyzer(sessions *Sessions, hub *Hub, sim *emotion.Simulator, interval time.Duration) *Analyzer {
	return &Analyzer{sessions: sessions, hub: hub, sim: sim, interval: interval}
}

// Run ticks until the context is cancelled. Ticks with no running
// session are skipped.
func (a *Analyzer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Analyzer) tick() {
	sessionID := a.sessions.Current()
	if sessionID == "" {
		return
	}

	assessment := emotion.Classify(a.sim.Next())
	a.publish(sessionID, assessment)
}

func (a *Analyzer) publish(sessionID string, assessment emotion.Assessment) {
	update := assessment.State()
	a.sessions.SetState(update)
	a.hub.Broadcast(sessionID, pushmodel.EventStateUpdate, update)
	log.Printf("[analyzer] session=%s emotion=%s risk=%s", sessionID, assessment.Emotion, assessment.Risk)

	if assessment.Risk.Critical() {
		incident := session.Incident{IncidentID: uuid.NewString()}
		a.hub.Broadcast(sessionID, pushmodel.EventEmergencyAlert, incident)
		log.Printf("[analyzer] emergency escalated session=%s incident=%s", sessionID, incident.IncidentID)
	}
}
