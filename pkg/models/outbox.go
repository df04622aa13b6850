package models

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a domain event committed in the same write as the state change
// that produced it. A relay publishes it to the event bus afterwards.
type OutboxEvent struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}
