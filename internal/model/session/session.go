package session

// Status describes the client-side lifecycle of the analysis session.
// Starting/ending are transient inside the call itself and never observable.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
)

// Session identifies the current analysis session. ID is assigned by the
// server on start and empty while idle.
type Session struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Active reports whether a server-issued session is in place.
func (s Session) Active() bool {
	return s.Status == StatusActive && s.ID != ""
}

// Summary is returned by the server when a session ends.
type Summary struct {
	DurationSeconds float64 `json:"duration_seconds"`
}
