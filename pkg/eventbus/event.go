package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID    uuid.UUID  `json:"userId"`
	AccountID *uuid.UUID `json:"accountId,omitempty"`
	Role      string     `json:"role,omitempty"`
}

// Payload is implemented by every typed event body.
type Payload interface {
	EventType() enums.OutboxEventType
	Aggregate() (enums.OutboxAggregateType, uuid.UUID)
}

// Event is the envelope carried on the bus.
type Event struct {
	ID            uuid.UUID
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	OccurredAt    time.Time
	Actor         *Actor
	Payload       Payload
}

// NewEvent stamps a fresh id and timestamp around payload.
func NewEvent(payload Payload, actor *Actor) Event {
	aggregateType, aggregateID := payload.Aggregate()
	return Event{
		ID:            uuid.New(),
		Type:          payload.EventType(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Actor:         actor,
		Payload:       payload,
	}
}

// PayloadAs extracts the typed payload whether it was emitted in-process as a
// value or decoded from the outbox as a pointer.
func PayloadAs[T Payload](event Event) (T, bool) {
	var zero T
	switch p := any(event.Payload).(type) {
	case T:
		return p, true
	case *T:
		if p != nil {
			return *p, true
		}
	}
	return zero, false
}
