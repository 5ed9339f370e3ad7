package links

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
)

// LinkRequestView is a link request as seen by either side of the pair.
type LinkRequestView struct {
	ID          uuid.UUID        `json:"id"`
	ConsumerID  uuid.UUID        `json:"consumer_id"`
	SupplierID  uuid.UUID        `json:"supplier_id"`
	RequestedBy uuid.UUID        `json:"requested_by"`
	Status      enums.LinkStatus `json:"status"`
	Message     *string          `json:"message,omitempty"`
	DecidedBy   *uuid.UUID       `json:"decided_by,omitempty"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func ToView(req models.LinkRequest) LinkRequestView {
	return LinkRequestView{
		ID:          req.ID,
		ConsumerID:  req.ConsumerID,
		SupplierID:  req.SupplierID,
		RequestedBy: req.RequestedBy,
		Status:      req.Status,
		Message:     req.Message,
		DecidedBy:   req.DecidedBy,
		DecidedAt:   req.DecidedAt,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func ToViews(rows []models.LinkRequest) []LinkRequestView {
	out := make([]LinkRequestView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToView(row))
	}
	return out
}
