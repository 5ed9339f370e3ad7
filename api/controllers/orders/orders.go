package orders

import (
	"net/http"

	"github.com/angelmondragon/tradelink-backend/api/middleware"
	"github.com/angelmondragon/tradelink-backend/api/responses"
	"github.com/angelmondragon/tradelink-backend/api/validators"
	internalorders "github.com/angelmondragon/tradelink-backend/internal/orders"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/google/uuid"
)

// Service exposes the per-side views of the Order Store.
type Service interface {
	Consumer() internalorders.ConsumerOrderOps
	Supplier() internalorders.SupplierOrderOps
}

type lineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type placeOrderRequest struct {
	SupplierID uuid.UUID     `json:"supplier_id" validate:"required"`
	Items      []lineRequest `json:"items" validate:"required,min=1,dive"`
	Notes      *string       `json:"notes" validate:"omitempty,max=2000"`
}

type checkoutRequest struct {
	Items []lineRequest `json:"items" validate:"required,min=1,dive"`
	Notes *string       `json:"notes" validate:"omitempty,max=2000"`
}

type updateStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,min=1"`
}

type listResponse struct {
	Items  []internalorders.OrderView `json:"items"`
	Cursor string                     `json:"cursor"`
}

// PlaceOrder creates a single-supplier order for the consumer.
func PlaceOrder(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Consumer().PlaceOrder(r.Context(), caller, internalorders.PlaceOrderInput{
			SupplierID: payload.SupplierID,
			Lines:      toLines(payload.Items),
			Notes:      payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.ToView(*order))
	}
}

// Checkout splits a multi-supplier basket into one order per supplier.
func Checkout(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.RequireCallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Consumer().Checkout(r.Context(), caller, internalorders.CheckoutInput{
			Lines: toLines(payload.Items),
			Notes: payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"orders": internalorders.ToViews(orders),
		})
	}
}

// List returns the caller's orders from the perspective of its account side.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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
		params := internalorders.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if raw := validators.OptionalQuery(r, "status"); raw != nil {
			status, err := enums.ParseOrderStatus(*raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		var result *internalorders.ListResult
		if caller.IsConsumer() {
			result, err = svc.Consumer().List(r.Context(), caller, params)
		} else {
			result, err = svc.Supplier().List(r.Context(), caller, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Items: internalorders.ToViews(result.Items), Cursor: result.Cursor})
	}
}

// Detail returns one order with its status timeline.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var order *models.Order
		if caller.IsConsumer() {
			order, err = svc.Consumer().Get(r.Context(), caller, orderID)
		} else {
			order, err = svc.Supplier().Get(r.Context(), caller, orderID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(*order))
	}
}

// UpdateStatus moves an order along its lifecycle on behalf of supplier staff.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.Supplier().UpdateStatus(r.Context(), caller, internalorders.UpdateStatusInput{
			OrderID:         orderID,
			Target:          target,
			ExpectedVersion: payload.ExpectedVersion,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ToView(*order))
	}
}

func toLines(items []lineRequest) []internalorders.Line {
	lines := make([]internalorders.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, internalorders.Line{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}
