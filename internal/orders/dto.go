package orders

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/internal/catalog"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderView is the order representation exchanged with callers.
type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	SupplierID    uuid.UUID         `json:"supplier_id"`
	ConsumerID    uuid.UUID         `json:"consumer_id"`
	Status        enums.OrderStatus `json:"status"`
	Items         []ItemView        `json:"items"`
	Total         int64             `json:"total"`
	TotalDisplay  string            `json:"total_display"`
	Notes         *string           `json:"notes,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	StatusHistory []HistoryView     `json:"status_history"`
}

// ItemView is one order line with its frozen unit price in cents.
type ItemView struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Qty         int       `json:"qty"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
}

// HistoryView is one entry of the status timeline.
type HistoryView struct {
	Status  enums.OrderStatus `json:"status"`
	Ts      time.Time         `json:"ts"`
	ActorID *uuid.UUID        `json:"actor_id,omitempty"`
}

// ToView converts a loaded order into its public representation.
func ToView(order models.Order) OrderView {
	view := OrderView{
		ID:            order.ID,
		SupplierID:    order.SupplierID,
		ConsumerID:    order.ConsumerID,
		Status:        order.Status,
		Items:         make([]ItemView, 0, len(order.Items)),
		Total:         order.TotalCents,
		TotalDisplay:  catalog.FromCents(order.TotalCents).StringFixed(2),
		Notes:         order.Notes,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		StatusHistory: make([]HistoryView, 0, len(order.History)),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, ItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			UnitPrice:   item.UnitPriceCents,
			LineTotal:   item.LineTotalCents,
		})
	}
	for _, entry := range order.History {
		view.StatusHistory = append(view.StatusHistory, HistoryView{
			Status:  entry.Status,
			Ts:      entry.CreatedAt,
			ActorID: entry.ActorID,
		})
	}
	return view
}

// ToViews converts a page of orders.
func ToViews(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		out = append(out, ToView(order))
	}
	return out
}
