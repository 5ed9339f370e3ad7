package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// ChatSession is the channel between a consumer and a supplier's sales staff.
type ChatSession struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConsumerID    uuid.UUID  `gorm:"column:consumer_id;type:uuid;not null"`
	SupplierID    uuid.UUID  `gorm:"column:supplier_id;type:uuid;not null"`
	SalesRepID    *uuid.UUID `gorm:"column:sales_rep_id;type:uuid"`
	OrderID       *uuid.UUID `gorm:"column:order_id;type:uuid;uniqueIndex:uq_chat_sessions_order_id"`
	LastMessageAt *time.Time `gorm:"column:last_message_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ChatMessage is a single entry in a session. A nil SenderID marks a system message.
type ChatMessage struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID     uuid.UUID              `gorm:"column:session_id;type:uuid;not null"`
	SenderID      *uuid.UUID             `gorm:"column:sender_id;type:uuid"`
	Text          *string                `gorm:"column:text"`
	AttachmentURL *string                `gorm:"column:attachment_url"`
	Severity      *enums.MessageSeverity `gorm:"column:severity;type:text"`
	EventID       *uuid.UUID             `gorm:"column:event_id;type:uuid"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// IsSystem reports whether the message was authored by the dispatcher.
func (m ChatMessage) IsSystem() bool {
	return m.SenderID == nil
}
