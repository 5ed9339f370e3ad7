package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// Complaint is a consumer-filed issue report; at most one exists per order.
type Complaint struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_complaints_order_id"`
	ConsumerID       uuid.UUID             `gorm:"column:consumer_id;type:uuid;not null"`
	SupplierID       uuid.UUID             `gorm:"column:supplier_id;type:uuid;not null"`
	SupplierName     string                `gorm:"column:supplier_name;not null"`
	FiledBy          uuid.UUID             `gorm:"column:filed_by;type:uuid;not null"`
	Reason           *string               `gorm:"column:reason"`
	Status           enums.ComplaintStatus `gorm:"column:status;type:text;not null;default:'open'"`
	ConsumerFeedback *bool                 `gorm:"column:consumer_feedback"`
	EscalatedAt      *time.Time            `gorm:"column:escalated_at"`
	ResolvedAt       *time.Time            `gorm:"column:resolved_at"`
	Version          int                   `gorm:"column:version;not null;default:1"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Escalation is the immutable audit record written when a supplier escalates.
type Escalation struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ComplaintID  uuid.UUID `gorm:"column:complaint_id;type:uuid;not null;uniqueIndex:uq_escalations_complaint_id"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	SupplierID   uuid.UUID `gorm:"column:supplier_id;type:uuid;not null"`
	SupplierName string    `gorm:"column:supplier_name;not null"`
	ConsumerID   uuid.UUID `gorm:"column:consumer_id;type:uuid;not null"`
	ConsumerName string    `gorm:"column:consumer_name;not null"`
	Reason       *string   `gorm:"column:reason"`
	EscalatedBy  uuid.UUID `gorm:"column:escalated_by;type:uuid;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
