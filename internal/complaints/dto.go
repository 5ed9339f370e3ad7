package complaints

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
)

// PartyView names an account denormalized onto a complaint record.
type PartyView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// ComplaintView is the complaint representation exchanged with callers.
type ComplaintView struct {
	ID               uuid.UUID             `json:"id"`
	OrderID          uuid.UUID             `json:"order_id"`
	ConsumerID       uuid.UUID             `json:"consumer_id"`
	Supplier         PartyView             `json:"supplier"`
	Reason           *string               `json:"reason"`
	Status           enums.ComplaintStatus `json:"status"`
	ConsumerFeedback *bool                 `json:"consumer_feedback"`
	Escalated        bool                  `json:"escalated"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	ResolvedAt       *time.Time            `json:"resolved_at,omitempty"`
}

// EscalationView is the read-only audit record of an escalation.
type EscalationView struct {
	ID          uuid.UUID `json:"id"`
	ComplaintID uuid.UUID `json:"complaint_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Supplier    PartyView `json:"supplier"`
	Consumer    PartyView `json:"consumer"`
	Reason      *string   `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToView(c models.Complaint) ComplaintView {
	return ComplaintView{
		ID:               c.ID,
		OrderID:          c.OrderID,
		ConsumerID:       c.ConsumerID,
		Supplier:         PartyView{ID: c.SupplierID, Name: c.SupplierName},
		Reason:           c.Reason,
		Status:           c.Status,
		ConsumerFeedback: c.ConsumerFeedback,
		Escalated:        c.EscalatedAt != nil,
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		ResolvedAt:       c.ResolvedAt,
	}
}

func ToViews(rows []models.Complaint) []ComplaintView {
	out := make([]ComplaintView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToView(row))
	}
	return out
}

func ToEscalationView(e models.Escalation) EscalationView {
	return EscalationView{
		ID:          e.ID,
		ComplaintID: e.ComplaintID,
		OrderID:     e.OrderID,
		Supplier:    PartyView{ID: e.SupplierID, Name: e.SupplierName},
		Consumer:    PartyView{ID: e.ConsumerID, Name: e.ConsumerName},
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt,
	}
}
