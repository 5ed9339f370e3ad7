package eventbus

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

type LinkRequested struct {
	RequestID  uuid.UUID `json:"requestId"`
	ConsumerID uuid.UUID `json:"consumerId"`
	SupplierID uuid.UUID `json:"supplierId"`
}

func (LinkRequested) EventType() enums.OutboxEventType { return enums.EventLinkRequested }
func (e LinkRequested) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateLinkRequest, e.RequestID
}

type LinkDecided struct {
	RequestID  uuid.UUID        `json:"requestId"`
	ConsumerID uuid.UUID        `json:"consumerId"`
	SupplierID uuid.UUID        `json:"supplierId"`
	Status     enums.LinkStatus `json:"status"`
}

func (LinkDecided) EventType() enums.OutboxEventType { return enums.EventLinkDecided }
func (e LinkDecided) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateLinkRequest, e.RequestID
}

type OrderCreated struct {
	OrderID    uuid.UUID `json:"orderId"`
	ConsumerID uuid.UUID `json:"consumerId"`
	SupplierID uuid.UUID `json:"supplierId"`
	TotalCents int64     `json:"totalCents"`
	ItemCount  int       `json:"itemCount"`
}

func (OrderCreated) EventType() enums.OutboxEventType { return enums.EventOrderCreated }
func (e OrderCreated) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateOrder, e.OrderID
}

type OrderStatusChanged struct {
	OrderID    uuid.UUID         `json:"orderId"`
	ConsumerID uuid.UUID         `json:"consumerId"`
	SupplierID uuid.UUID         `json:"supplierId"`
	OldStatus  enums.OrderStatus `json:"oldStatus"`
	NewStatus  enums.OrderStatus `json:"newStatus"`
}

func (OrderStatusChanged) EventType() enums.OutboxEventType { return enums.EventOrderStatusChanged }
func (e OrderStatusChanged) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateOrder, e.OrderID
}

// ComplaintRef is shared by every complaint event.
type ComplaintRef struct {
	ComplaintID uuid.UUID `json:"complaintId"`
	OrderID     uuid.UUID `json:"orderId"`
	ConsumerID  uuid.UUID `json:"consumerId"`
	SupplierID  uuid.UUID `json:"supplierId"`
}

func (c ComplaintRef) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateComplaint, c.ComplaintID
}

type ComplaintFiled struct {
	ComplaintRef
	Reason *string `json:"reason,omitempty"`
}

func (ComplaintFiled) EventType() enums.OutboxEventType { return enums.EventComplaintFiled }

type ComplaintResolved struct {
	ComplaintRef
}

func (ComplaintResolved) EventType() enums.OutboxEventType { return enums.EventComplaintResolved }

type ComplaintEscalated struct {
	ComplaintRef
	EscalationID uuid.UUID `json:"escalationId"`
	Reason       *string   `json:"reason,omitempty"`
}

func (ComplaintEscalated) EventType() enums.OutboxEventType { return enums.EventComplaintEscalated }

type ComplaintReopened struct {
	ComplaintRef
}

func (ComplaintReopened) EventType() enums.OutboxEventType { return enums.EventComplaintReopened }

type ComplaintFeedbackRecorded struct {
	ComplaintRef
	Satisfied bool `json:"satisfied"`
}

func (ComplaintFeedbackRecorded) EventType() enums.OutboxEventType {
	return enums.EventComplaintFeedbackRecorded
}

type ChatSessionStarted struct {
	SessionID  uuid.UUID  `json:"sessionId"`
	ConsumerID uuid.UUID  `json:"consumerId"`
	SupplierID uuid.UUID  `json:"supplierId"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
}

func (ChatSessionStarted) EventType() enums.OutboxEventType { return enums.EventChatSessionStarted }
func (e ChatSessionStarted) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateChatSession, e.SessionID
}

type MessageSent struct {
	MessageID     uuid.UUID  `json:"messageId"`
	SessionID     uuid.UUID  `json:"sessionId"`
	SenderID      uuid.UUID  `json:"senderId"`
	SenderRole    enums.Role `json:"senderRole"`
	ConsumerID    uuid.UUID  `json:"consumerId"`
	SupplierID    uuid.UUID  `json:"supplierId"`
	SalesRepID    *uuid.UUID `json:"salesRepId,omitempty"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
	Preview       string     `json:"preview"`
	HasAttachment bool       `json:"hasAttachment"`
}

func (MessageSent) EventType() enums.OutboxEventType { return enums.EventMessageSent }
func (e MessageSent) Aggregate() (enums.OutboxAggregateType, uuid.UUID) {
	return enums.AggregateChatSession, e.SessionID
}

var payloadFactories = map[enums.OutboxEventType]func() Payload{
	enums.EventLinkRequested:             func() Payload { return &LinkRequested{} },
	enums.EventLinkDecided:               func() Payload { return &LinkDecided{} },
	enums.EventOrderCreated:              func() Payload { return &OrderCreated{} },
	enums.EventOrderStatusChanged:        func() Payload { return &OrderStatusChanged{} },
	enums.EventComplaintFiled:            func() Payload { return &ComplaintFiled{} },
	enums.EventComplaintResolved:         func() Payload { return &ComplaintResolved{} },
	enums.EventComplaintEscalated:        func() Payload { return &ComplaintEscalated{} },
	enums.EventComplaintReopened:         func() Payload { return &ComplaintReopened{} },
	enums.EventComplaintFeedbackRecorded: func() Payload { return &ComplaintFeedbackRecorded{} },
	enums.EventChatSessionStarted:        func() Payload { return &ChatSessionStarted{} },
	enums.EventMessageSent:               func() Payload { return &MessageSent{} },
}

// NewPayload returns an empty pointer payload for eventType, ready to unmarshal into.
func NewPayload(eventType enums.OutboxEventType) (Payload, error) {
	factory, ok := payloadFactories[eventType]
	if !ok {
		return nil, fmt.Errorf("no payload registered for %s", eventType)
	}
	return factory(), nil
}
