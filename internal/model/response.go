package model

import "time"

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MessageResponse is returned by delete operations.
type MessageResponse struct {
	Message string `json:"message"`
}

// StoreList is the body of GET /stores.
type StoreList struct {
	Stores []Store `json:"stores"`
}

// ItemList is the body of GET /items.
type ItemList struct {
	Items []Item `json:"items"`
}

// Change feed event types.
const (
	EventStoreCreated = "store.created"
	EventStoreUpdated = "store.updated"
	EventStoreDeleted = "store.deleted"
	EventItemCreated  = "item.created"
	EventItemUpdated  = "item.updated"
	EventItemDeleted  = "item.deleted"
)

// Event describes one committed catalog mutation sent over the change feed.
// Seq increases by one per event in commit order; a gap means the client
// missed events.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current UTC time.
func NewEvent(eventType, id string, data any) Event {
	return Event{
		Type:      eventType,
		ID:        id,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
