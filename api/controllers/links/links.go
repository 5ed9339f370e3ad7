package links

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/api/middleware"
	"github.com/angelmondragon/tradelink-backend/api/responses"
	"github.com/angelmondragon/tradelink-backend/api/validators"
	internallinks "github.com/angelmondragon/tradelink-backend/internal/links"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

type requestLinkRequest struct {
	SupplierID uuid.UUID `json:"supplier_id" validate:"required"`
	Message    *string   `json:"message" validate:"omitempty,max=1000"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject block"`
}

type listResponse struct {
	Items  []internallinks.LinkRequestView `json:"items"`
	Cursor string                          `json:"cursor"`
}

// Request asks a supplier to trade with the caller's consumer account.
func Request(svc internallinks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "links service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload requestLinkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Request(r.Context(), caller, internallinks.RequestInput{
			SupplierID: payload.SupplierID,
			Message:    validators.SanitizeOptional(payload.Message, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internallinks.ToView(*request))
	}
}

// List returns link requests where the caller's account is either party.
func List(svc internallinks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "links service unavailable"))
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
		params := internallinks.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if raw := validators.OptionalQuery(r, "status"); raw != nil {
			status, err := enums.ParseLinkStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), caller, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Items: internallinks.ToViews(result.Items), Cursor: result.Cursor})
	}
}

// Decide applies a supplier's accept, reject or block decision.
func Decide(svc internallinks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "links service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload decisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseLinkDecision(payload.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		request, err := svc.Decide(r.Context(), caller, internallinks.DecideInput{
			RequestID: requestID,
			Decision:  decision,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internallinks.ToView(*request))
	}
}
