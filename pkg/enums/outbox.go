package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateLinkRequest OutboxAggregateType = "link_request"
	AggregateOrder       OutboxAggregateType = "order"
	AggregateComplaint   OutboxAggregateType = "complaint"
	AggregateChatSession OutboxAggregateType = "chat_session"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLinkRequest,
	AggregateOrder,
	AggregateComplaint,
	AggregateChatSession,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names every domain event carried by the bus and the outbox.
type OutboxEventType string

const (
	EventLinkRequested             OutboxEventType = "link_requested"
	EventLinkDecided               OutboxEventType = "link_decided"
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderStatusChanged        OutboxEventType = "order_status_changed"
	EventComplaintFiled            OutboxEventType = "complaint_filed"
	EventComplaintResolved         OutboxEventType = "complaint_resolved"
	EventComplaintEscalated        OutboxEventType = "complaint_escalated"
	EventComplaintReopened         OutboxEventType = "complaint_reopened"
	EventComplaintFeedbackRecorded OutboxEventType = "complaint_feedback_recorded"
	EventChatSessionStarted        OutboxEventType = "chat_session_started"
	EventMessageSent               OutboxEventType = "message_sent"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLinkRequested,
	EventLinkDecided,
	EventOrderCreated,
	EventOrderStatusChanged,
	EventComplaintFiled,
	EventComplaintResolved,
	EventComplaintEscalated,
	EventComplaintReopened,
	EventComplaintFeedbackRecorded,
	EventChatSessionStarted,
	EventMessageSent,
}

func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
