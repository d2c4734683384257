// Package push defines the wire format shared by the push channel client
// and the analyzer's push hub.
package push

import "encoding/json"

// Event names emitted by the analysis service over the push channel.
const (
	EventConnected      = "connected"
	EventStateUpdate    = "state_update"
	EventEmergencyAlert = "emergency_alert"
)

// Envelope wraps every push-channel frame. Data holds the event payload
// and is absent for bare notifications such as "connected".
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope for the given event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}
