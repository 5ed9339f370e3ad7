package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

// Order is a supplier-scoped purchase created from a consumer's cart.
type Order struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConsumerID uuid.UUID            `gorm:"column:consumer_id;type:uuid;not null"`
	SupplierID uuid.UUID            `gorm:"column:supplier_id;type:uuid;not null"`
	PlacedBy   uuid.UUID            `gorm:"column:placed_by;type:uuid;not null"`
	Status     enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalCents int64                `gorm:"column:total_cents;not null"`
	Notes      *string              `gorm:"column:notes"`
	Version    int                  `gorm:"column:version;not null;default:1"`
	Items      []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History    []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one ordered line with its price frozen at creation.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	Position       int       `gorm:"column:position;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OrderStatusHistory is the append-only status timeline of an order.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Seq       int               `gorm:"column:seq;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
