package domain

import "time"

// EventType is the kind of change reported by the change feed.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"

	// EventResync is never produced by a store. The listener emits it after a
	// dropped feed was re-established, since events may have been missed.
	EventResync EventType = "resync"
)

// ChangeEvent describes one store change for one owner.
// For deletes Row only carries the ID.
type ChangeEvent struct {
	Type    EventType `json:"type"`
	OwnerID string    `json:"owner_id"`
	Row     Bookmark  `json:"row"`
	At      time.Time `json:"at"`
}
