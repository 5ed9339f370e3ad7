package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// LinkRequest records a consumer asking to trade with a supplier.
type LinkRequest struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConsumerID  uuid.UUID        `gorm:"column:consumer_id;type:uuid;not null"`
	SupplierID  uuid.UUID        `gorm:"column:supplier_id;type:uuid;not null"`
	RequestedBy uuid.UUID        `gorm:"column:requested_by;type:uuid;not null"`
	Status      enums.LinkStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Message     *string          `gorm:"column:message"`
	DecidedBy   *uuid.UUID       `gorm:"column:decided_by;type:uuid"`
	DecidedAt   *time.Time       `gorm:"column:decided_at"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// SupplierLink is the materialized relationship consulted for catalog visibility.
type SupplierLink struct {
	ConsumerID uuid.UUID        `gorm:"column:consumer_id;type:uuid;primaryKey"`
	SupplierID uuid.UUID        `gorm:"column:supplier_id;type:uuid;primaryKey"`
	RequestID  uuid.UUID        `gorm:"column:request_id;type:uuid;not null"`
	Status     enums.LinkStatus `gorm:"column:status;type:text;not null"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
