package models

import "time"

// SessionEvent is the externally observable signal derived from a revealed
// status. It never says which side acted or what anybody decided.
type SessionEvent struct {
	Type           string    `json:"type"`
	SessionKey     string    `json:"sessionKey"`
	SessionID      string    `json:"sessionId"`
	State          string    `json:"state"`
	MatchTimestamp int64     `json:"matchTimestamp,omitempty"`
	At             time.Time `json:"at"`
}

// Finalizing reports whether the event closes the session.
func (e SessionEvent) Finalizing() bool {
	return e.Type == EventMatchConfirmed || e.Type == EventNoMatch
}
