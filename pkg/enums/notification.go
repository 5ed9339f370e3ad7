package enums

import "fmt"

// NotificationType maps to the notification_type column.
type NotificationType string

const (
	NotificationTypeLinkRequest     NotificationType = "link_request"
	NotificationTypeOrderUpdate     NotificationType = "order_update"
	NotificationTypeComplaintUpdate NotificationType = "complaint_update"
	NotificationTypeEscalation      NotificationType = "escalation"
	NotificationTypeChatMessage     NotificationType = "chat_message"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeLinkRequest,
	NotificationTypeOrderUpdate,
	NotificationTypeComplaintUpdate,
	NotificationTypeEscalation,
	NotificationTypeChatMessage,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// EntityType names the record a notification points at.
type EntityType string

const (
	EntityOrder       EntityType = "order"
	EntityComplaint   EntityType = "complaint"
	EntityChatSession EntityType = "chat_session"
	EntityLinkRequest EntityType = "link_request"
)

var validEntityTypes = []EntityType{
	EntityOrder,
	EntityComplaint,
	EntityChatSession,
	EntityLinkRequest,
}

// IsValid checks whether the given entity type is known.
func (e EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
