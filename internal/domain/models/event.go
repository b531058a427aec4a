package models

import "time"

// EventType categorizes bus events.
type EventType string

const (
	EventState  EventType = "state"
	EventSignal EventType = "signal"
	EventItem   EventType = "item"
)

// Event is one entry of the bounded in-process event log.
// IDs are assigned by the bus and are strictly increasing.
type Event struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   string         `json:"summary"`
	Payload   map[string]any `json:"payload"`
}
