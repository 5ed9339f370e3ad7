package chat

import (
	"net/http"

	"github.com/angelmondragon/tradelink-backend/api/middleware"
	"github.com/angelmondragon/tradelink-backend/api/responses"
	"github.com/angelmondragon/tradelink-backend/api/validators"
	internalchat "github.com/angelmondragon/tradelink-backend/internal/chat"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

// Service exposes the per-side views of the Chat Session Directory.
type Service interface {
	Consumer() internalchat.ConsumerChatOps
	Supplier() internalchat.SupplierChatOps
}

type sendRequest struct {
	Text          *string `json:"text" validate:"omitempty,max=4000"`
	AttachmentURL *string `json:"attachment_url" validate:"omitempty,url,max=2048"`
}

type sessionsResponse struct {
	Items  []internalchat.SessionView `json:"items"`
	Cursor string                     `json:"cursor"`
}

type messagesResponse struct {
	Items  []internalchat.MessageView `json:"items"`
	Cursor string                     `json:"cursor"`
}

// OpenForOrder returns the order's chat session, creating it on first use.
func OpenForOrder(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Consumer().OpenForOrder(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalchat.ToSessionView(*session))
	}
}

// FindForOrder lets supplier staff check whether the consumer has started a chat.
func FindForOrder(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lookup, err := svc.Supplier().FindForOrder(r.Context(), caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalchat.ToLookupView(*lookup))
	}
}

func ListSessions(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *internalchat.SessionPage
		if caller.IsConsumer() {
			result, err = svc.Consumer().ListSessions(r.Context(), caller, page)
		} else {
			result, err = svc.Supplier().ListSessions(r.Context(), caller, page)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionsResponse{Items: internalchat.ToSessionViews(result.Items), Cursor: result.Cursor})
	}
}

// Messages pages through a session's messages, newest first.
func Messages(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *internalchat.MessagePage
		if caller.IsConsumer() {
			result, err = svc.Consumer().Messages(r.Context(), caller, sessionID, page)
		} else {
			result, err = svc.Supplier().Messages(r.Context(), caller, sessionID, page)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, messagesResponse{Items: internalchat.ToMessageViews(result.Items), Cursor: result.Cursor})
	}
}

func Send(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := validators.ParseUUIDParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalchat.SendInput{
			SessionID:     sessionID,
			Text:          payload.Text,
			AttachmentURL: payload.AttachmentURL,
		}

		var message *models.ChatMessage
		if caller.IsConsumer() {
			message, err = svc.Consumer().Send(r.Context(), caller, input)
		} else {
			message, err = svc.Supplier().Send(r.Context(), caller, input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalchat.ToMessageView(*message))
	}
}
