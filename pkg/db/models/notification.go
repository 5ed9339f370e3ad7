package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a single user.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null"`
	Type        enums.NotificationType `gorm:"column:type;type:text;not null"`
	Message     string                 `gorm:"column:message;type:text;not null"`
	EntityType  *enums.EntityType      `gorm:"column:entity_type;type:text"`
	EntityID    *uuid.UUID             `gorm:"column:entity_id;type:uuid"`
	EventID     *uuid.UUID             `gorm:"column:event_id;type:uuid"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// IsRead reports whether the recipient has acknowledged the notification.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
