package models

import "time"

// AlertEvent is a single journal entry.
type AlertEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`             // STATUS_CHANGE | FETCH_FAILED
	Sensor      string    `json:"sensor,omitempty"` // empty for cycle-wide events
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
