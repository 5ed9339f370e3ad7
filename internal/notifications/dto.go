package notifications

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
)

// NotificationView is an inbox entry as returned to its recipient.
type NotificationView struct {
	ID         uuid.UUID              `json:"id"`
	Type       enums.NotificationType `json:"type"`
	Message    string                 `json:"message"`
	EntityType *enums.EntityType      `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID             `json:"entity_id,omitempty"`
	Read       bool                   `json:"read"`
	ReadAt     *time.Time             `json:"read_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func ToView(n models.Notification) NotificationView {
	return NotificationView{
		ID:         n.ID,
		Type:       n.Type,
		Message:    n.Message,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Read:       n.IsRead(),
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

func ToViews(rows []models.Notification) []NotificationView {
	out := make([]NotificationView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToView(row))
	}
	return out
}
