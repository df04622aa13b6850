// Package events defines the domain events emitted by the manuscript workflow.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/folio/pkg/models"
)

type EventType string

// Topic carries every manuscript workflow event.
const Topic = "folio.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ManuscriptSubmittedEvent     EventType = "manuscript.submitted"
	ManuscriptStatusChangedEvent EventType = "manuscript.status_changed"
	ManuscriptResubmittedEvent   EventType = "manuscript.resubmitted"

	ReviewerAssignedEvent   EventType = "reviewer.assigned"
	ReviewerRespondedEvent  EventType = "reviewer.responded"
	ReviewerUnassignedEvent EventType = "reviewer.unassigned"
	ReviewSubmittedEvent    EventType = "review.submitted"
	DeadlinesUpdatedEvent   EventType = "reviewer.deadlines_updated"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Event is anything that can travel on the bus.
type Event interface {
	GetType() EventType
	GetID() string
}

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	ManuscriptID string         `json:"manuscript_id"`
	ActorID      string         `json:"actor_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (e BaseEvent) GetID() string {
	return e.ID
}

type ManuscriptSubmitted struct {
	BaseEvent

	SubmitterID string `json:"submitter_id"`
	Title       string `json:"title"`
}

func (e ManuscriptSubmitted) GetType() EventType {
	return ManuscriptSubmittedEvent
}

// StatusChanged is emitted only when the status value actually changed.
type StatusChanged struct {
	BaseEvent

	From          models.Status `json:"from"`
	To            models.Status `json:"to"`
	VersionNumber int           `json:"version_number"`
}

func (e StatusChanged) GetType() EventType {
	return ManuscriptStatusChangedEvent
}

type Resubmitted struct {
	BaseEvent

	VersionNumber int           `json:"version_number"`
	Revision      models.Status `json:"revision"`
}

func (e Resubmitted) GetType() EventType {
	return ManuscriptResubmittedEvent
}

type ReviewerAssigned struct {
	BaseEvent

	ReviewerID string     `json:"reviewer_id"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	IsReReview bool       `json:"is_re_review"`
}

func (e ReviewerAssigned) GetType() EventType {
	return ReviewerAssignedEvent
}

type ReviewerResponded struct {
	BaseEvent

	ReviewerID string                  `json:"reviewer_id"`
	Response   models.InvitationStatus `json:"response"`
}

func (e ReviewerResponded) GetType() EventType {
	return ReviewerRespondedEvent
}

type ReviewerUnassigned struct {
	BaseEvent

	ReviewerID string `json:"reviewer_id"`
}

func (e ReviewerUnassigned) GetType() EventType {
	return ReviewerUnassignedEvent
}

type ReviewSubmitted struct {
	BaseEvent

	ReviewerID    string          `json:"reviewer_id"`
	Decision      models.Decision `json:"decision"`
	VersionNumber int             `json:"version_number"`
}

func (e ReviewSubmitted) GetType() EventType {
	return ReviewSubmittedEvent
}

type DeadlinesUpdated struct {
	BaseEvent

	ReviewerIDs []string  `json:"reviewer_ids"`
	Deadline    time.Time `json:"deadline"`
}

func (e DeadlinesUpdated) GetType() EventType {
	return DeadlinesUpdatedEvent
}

// New returns an empty pointer for eventType, ready to be unmarshaled into.
func New(eventType EventType) (Event, error) {
	switch eventType {
	case ManuscriptSubmittedEvent:
		return &ManuscriptSubmitted{}, nil
	case ManuscriptStatusChangedEvent:
		return &StatusChanged{}, nil
	case ManuscriptResubmittedEvent:
		return &Resubmitted{}, nil
	case ReviewerAssignedEvent:
		return &ReviewerAssigned{}, nil
	case ReviewerRespondedEvent:
		return &ReviewerResponded{}, nil
	case ReviewerUnassignedEvent:
		return &ReviewerUnassigned{}, nil
	case ReviewSubmittedEvent:
		return &ReviewSubmitted{}, nil
	case DeadlinesUpdatedEvent:
		return &DeadlinesUpdated{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
}

// Decode unmarshals payload into the concrete event for eventType.
func Decode(eventType EventType, payload []byte) (Event, error) {
	event, err := New(eventType)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}

// ToOutbox serializes an event into an outbox record.
func ToOutbox(id, aggregateID string, at time.Time, event Event) (models.OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("failed to encode %s event: %w", event.GetType(), err)
	}

	return models.OutboxEvent{
		ID:          id,
		AggregateID: aggregateID,
		Type:        string(event.GetType()),
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
