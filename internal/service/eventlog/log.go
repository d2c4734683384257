// Package eventlog keeps the human-readable connection trace shown in the
// booth UI. It is append-only and purely observational: nothing in the
// client reads it back to make control decisions.
package eventlog

import (
	"fmt"
	"sync"
	"time"
)

// AlertPrefix marks emergency entries so the UI can render them apart.
const AlertPrefix = "[ALERTA CRITICA]"

// Log is an append-only ordered sequence of trace lines.
type Log struct {
	mu      sync.RWMutex
	entries []string
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Appendf formats and appends one timestamped entry.
func (l *Log) Appendf(format string, args ...any) {
	l.append(fmt.Sprintf(format, args...))
}

// Alertf appends an emergency entry carrying the alert prefix.
func (l *Log) Alertf(format string, args ...any) {
	l.append(AlertPrefix + " " + fmt.Sprintf(format, args...))
}

func (l *Log) append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamped := fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), line)
	l.entries = append(l.entries, stamped)
}

// Snapshot returns a copy of all entries in append order.
func (l *Log) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make([]string, len(l.entries))
	copy(copied, l.entries)
	return copied
}

// Reset discards all entries. Called when a new session starts.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
