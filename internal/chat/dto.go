package chat

import (
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
)

type SessionView struct {
	ID            uuid.UUID  `json:"id"`
	ConsumerID    uuid.UUID  `json:"consumer_id"`
	SupplierID    uuid.UUID  `json:"supplier_id"`
	SalesRepID    *uuid.UUID `json:"sales_rep_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MessageView is a chat entry. System messages have no sender and carry a severity.
type MessageView struct {
	ID            uuid.UUID              `json:"id"`
	SessionID     uuid.UUID              `json:"session_id"`
	SenderID      *uuid.UUID             `json:"sender_id"`
	System        bool                   `json:"system"`
	Text          *string                `json:"text,omitempty"`
	AttachmentURL *string                `json:"attachment_url,omitempty"`
	Severity      *enums.MessageSeverity `json:"severity,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// LookupView answers a supplier asking whether an order's chat has started.
type LookupView struct {
	Started bool         `json:"started"`
	Session *SessionView `json:"session,omitempty"`
}

func ToSessionView(s models.ChatSession) SessionView {
	return SessionView{
		ID:            s.ID,
		ConsumerID:    s.ConsumerID,
		SupplierID:    s.SupplierID,
		SalesRepID:    s.SalesRepID,
		OrderID:       s.OrderID,
		LastMessageAt: s.LastMessageAt,
		CreatedAt:     s.CreatedAt,
	}
}

func ToSessionViews(rows []models.ChatSession) []SessionView {
	out := make([]SessionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToSessionView(row))
	}
	return out
}

func ToMessageView(m models.ChatMessage) MessageView {
	return MessageView{
		ID:            m.ID,
		SessionID:     m.SessionID,
		SenderID:      m.SenderID,
		System:        m.IsSystem(),
		Text:          m.Text,
		AttachmentURL: m.AttachmentURL,
		Severity:      m.Severity,
		CreatedAt:     m.CreatedAt,
	}
}

func ToMessageViews(rows []models.ChatMessage) []MessageView {
	out := make([]MessageView, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToMessageView(row))
	}
	return out
}

func ToLookupView(l Lookup) LookupView {
	view := LookupView{Started: l.Started}
	if l.Session != nil {
		session := ToSessionView(*l.Session)
		view.Session = &session
	}
	return view
}
