// Package state holds the client's current belief about the emotional
// state of the person in the booth. It is a terminal sink: it accepts
// updates from the push channel and exposes read-only snapshots, and it
// never calls back into the session or push layers.
package state

import (
	"sync"

	"github.com/miguelrl/cabina/client/internal/model/session"
)

// Reconciler stores the latest EmotionalState and the sticky emergency
// flag. Once raised, the flag stays raised until Reset.
type Reconciler struct {
	mu        sync.RWMutex
	current   session.EmotionalState
	emergency bool
}

// New creates a reconciler holding the neutral default state.
func New() *Reconciler {
	return &Reconciler{current: session.DefaultState()}
}

// ApplyUpdate replaces the current state with the pushed payload. A
// payload at the maximum severity raises the emergency flag as a side
// effect; nothing ever lowers it here.
func (r *Reconciler) ApplyUpdate(next session.EmotionalState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = next
	if next.RiskLevel.Critical() {
		r.emergency = true
	}
}

// RaiseEmergency sets the emergency flag unconditionally.
func (r *Reconciler) RaiseEmergency() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emergency = true
}

// Reset restores the neutral default state and clears the emergency flag.
// Called only on session boundaries.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = session.DefaultState()
	r.emergency = false
}

// Current returns the most recently applied state.
func (r *Reconciler) Current() session.EmotionalState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Emergency reports whether an emergency has been observed this session.
func (r *Reconciler) Emergency() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emergency
}
