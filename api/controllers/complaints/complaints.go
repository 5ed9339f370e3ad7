package complaints

import (
	"net/http"

	"github.com/angelmondragon/tradelink-backend/api/middleware"
	"github.com/angelmondragon/tradelink-backend/api/responses"
	"github.com/angelmondragon/tradelink-backend/api/validators"
	internalcomplaints "github.com/angelmondragon/tradelink-backend/internal/complaints"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

// Service exposes the per-side views of the Complaint Workflow.
type Service interface {
	Consumer() internalcomplaints.ConsumerComplaintOps
	Supplier() internalcomplaints.SupplierComplaintOps
}

type fileRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=2000"`
}

type escalateRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=2000"`
}

type feedbackRequest struct {
	Satisfied *bool `json:"satisfied" validate:"required"`
}

type listResponse struct {
	Items  []internalcomplaints.ComplaintView `json:"items"`
	Cursor string                             `json:"cursor"`
}

// File opens the complaint for an order. Filing twice returns the existing complaint.
func File(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
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

		var payload fileRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.Consumer().File(r.Context(), caller, internalcomplaints.FileInput{
			OrderID: orderID,
			Reason:  validators.SanitizeOptional(payload.Reason, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcomplaints.ToView(*complaint))
	}
}

func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
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
		params := internalcomplaints.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if raw := validators.OptionalQuery(r, "status"); raw != nil {
			status, err := enums.ParseComplaintStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		var result *internalcomplaints.ListResult
		if caller.IsConsumer() {
			result, err = svc.Consumer().List(r.Context(), caller, params)
		} else {
			result, err = svc.Supplier().List(r.Context(), caller, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Items: internalcomplaints.ToViews(result.Items), Cursor: result.Cursor})
	}
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		complaintID, err := validators.ParseUUIDParam(r, "complaintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var complaint *models.Complaint
		if caller.IsConsumer() {
			complaint, err = svc.Consumer().Get(r.Context(), caller, complaintID)
		} else {
			complaint, err = svc.Supplier().Get(r.Context(), caller, complaintID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcomplaints.ToView(*complaint))
	}
}

// Resolve closes an open or in-progress complaint.
func Resolve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		complaintID, err := validators.ParseUUIDParam(r, "complaintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.Supplier().Resolve(r.Context(), caller, complaintID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcomplaints.ToView(*complaint))
	}
}

// Escalate records the escalation audit entry and moves the complaint to in_progress.
func Escalate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		complaintID, err := validators.ParseUUIDParam(r, "complaintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload escalateRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escalation, err := svc.Supplier().Escalate(r.Context(), caller, internalcomplaints.EscalateInput{
			ComplaintID: complaintID,
			Reason:      validators.SanitizeOptional(payload.Reason, 2000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalcomplaints.ToEscalationView(*escalation))
	}
}

func Escalation(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		complaintID, err := validators.ParseUUIDParam(r, "complaintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escalation, err := svc.Supplier().Escalation(r.Context(), caller, complaintID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcomplaints.ToEscalationView(*escalation))
	}
}

// Feedback records the consumer's verdict on a resolved complaint.
func Feedback(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "complaints service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		complaintID, err := validators.ParseUUIDParam(r, "complaintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload feedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		complaint, err := svc.Consumer().Feedback(r.Context(), caller, internalcomplaints.FeedbackInput{
			ComplaintID: complaintID,
			Satisfied:   *payload.Satisfied,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalcomplaints.ToView(*complaint))
	}
}
