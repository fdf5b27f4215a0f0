package models

import "time"

// SessionStatus represents the lifecycle state of an emergency session.
type SessionStatus string

const (
	SessionStatusIdle     SessionStatus = "idle"
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusResolved SessionStatus = "resolved"
)

// HistoryKind labels an entry in the session audit trail.
type HistoryKind string

const (
	HistoryStarted      HistoryKind = "started"
	HistoryUpdated      HistoryKind = "updated"
	HistoryReclassified HistoryKind = "reclassified"
	HistoryResolved     HistoryKind = "resolved"
	HistoryLateLocation HistoryKind = "late_location"
)

// HistoryEntry is one append-only audit record. PreviousCategory is set
// on reclassified entries only.
type HistoryEntry struct {
	SessionID        string       `json:"session_id"`
	Kind             HistoryKind  `json:"kind"`
	Category         Category     `json:"category,omitempty"`
	PreviousCategory Category     `json:"previous_category,omitempty"`
	Description      string       `json:"description"`
	Location         *Coordinates `json:"location,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// EmergencySession is the orchestrator's view of the current incident.
// Category and Description are cleared for display once resolved; History
// is the durable record and is never truncated.
type EmergencySession struct {
	ID            string         `json:"id,omitempty"`
	Status        SessionStatus  `json:"status"`
	Category      Category       `json:"category,omitempty"`
	Description   string         `json:"description"`
	Location      *Coordinates   `json:"location,omitempty"`
	Guidance      []string       `json:"guidance,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
	History       []HistoryEntry `json:"history"`
}

// Active reports whether the session is currently active.
func (s EmergencySession) Active() bool {
	return s.Status == SessionStatusActive
}

// Clone returns a deep copy safe to hand to readers.
func (s EmergencySession) Clone() EmergencySession {
	out := s
	out.Location = s.Location.Clone()
	if s.Guidance != nil {
		out.Guidance = append([]string(nil), s.Guidance...)
	}
	out.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		h.Location = h.Location.Clone()
		out.History[i] = h
	}
	return out
}

// Entries returns the history entries that belong to the given session ID.
func (s EmergencySession) Entries(sessionID string) []HistoryEntry {
	var out []HistoryEntry
	for _, h := range s.History {
		if h.SessionID == sessionID {
			out = append(out, h)
		}
	}
	return out
}
