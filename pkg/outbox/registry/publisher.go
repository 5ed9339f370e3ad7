package registry

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/outbox"
)

// Message attribute keys set by the relay and read by the worker.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// EventDescriptor links an event type to its aggregate and topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is the result of decoding an outbox row or a relayed message.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Event      eventbus.Event
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the relay or worker should stop retrying.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for eventType, aggregateType := range map[enums.OutboxEventType]enums.OutboxAggregateType{
		enums.EventLinkRequested:             enums.AggregateLinkRequest,
		enums.EventLinkDecided:               enums.AggregateLinkRequest,
		enums.EventOrderCreated:              enums.AggregateOrder,
		enums.EventOrderStatusChanged:        enums.AggregateOrder,
		enums.EventComplaintFiled:            enums.AggregateComplaint,
		enums.EventComplaintResolved:         enums.AggregateComplaint,
		enums.EventComplaintEscalated:        enums.AggregateComplaint,
		enums.EventComplaintReopened:         enums.AggregateComplaint,
		enums.EventComplaintFeedbackRecorded: enums.AggregateComplaint,
		enums.EventChatSessionStarted:        enums.AggregateChatSession,
		enums.EventMessageSent:               enums.AggregateChatSession,
	} {
		reg.entries[eventType] = EventDescriptor{
			EventType:     eventType,
			AggregateType: aggregateType,
			Topic:         cfg.DomainTopic,
		}
	}
	return reg, nil
}

// Resolve validates an outbox row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	return r.resolve(event.EventType, event.AggregateType, event.AggregateID, event.Payload)
}

// ResolveMessage decodes a relayed message body using its attributes.
func (r *EventRegistry) ResolveMessage(data []byte, attrs map[string]string) (*ResolvedEvent, error) {
	eventType, err := enums.ParseOutboxEventType(attrs[AttrEventType])
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attrs[AttrAggregateType])
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	aggregateID, err := uuid.Parse(attrs[AttrAggregateID])
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("invalid aggregate_id: %w", err))
	}
	return r.resolve(eventType, aggregateType, aggregateID, data)
}

func (r *EventRegistry) resolve(eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID, raw []byte) (*ResolvedEvent, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", eventType))
	}
	if desc.AggregateType != aggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, aggregateType))
	}
	if aggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, eventID, err := outbox.DecodeEnvelope(raw)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	payload, err := eventbus.NewPayload(eventType)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", eventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Event: eventbus.Event{
			ID:            eventID,
			Type:          eventType,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			OccurredAt:    envelope.OccurredAt,
			Actor:         envelope.Actor,
			Payload:       derefPayload(payload),
		},
	}, nil
}

// derefPayload hands handlers the same value types that producers publish.
func derefPayload(p eventbus.Payload) eventbus.Payload {
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return p
	}
	if value, ok := v.Elem().Interface().(eventbus.Payload); ok {
		return value
	}
	return p
}
