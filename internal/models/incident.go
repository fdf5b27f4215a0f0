package models

import "time"

// Incident is an archived, resolved emergency session kept for
// post-incident review.
type Incident struct {
	ID         string         `json:"id"`
	Category   Category       `json:"category"` // final category before resolution
	Location   *Coordinates   `json:"location,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	ResolvedAt time.Time      `json:"resolved_at"`
	Events     []HistoryEntry `json:"events,omitempty"`
}
