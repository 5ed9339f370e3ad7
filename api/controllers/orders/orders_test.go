package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/api/middleware"
	internalorders "github.com/angelmondragon/tradelink-backend/internal/orders"
	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

type stubConsumerOps struct {
	placeFn    func(ctx context.Context, caller auth.Caller, input internalorders.PlaceOrderInput) (*models.Order, error)
	checkoutFn func(ctx context.Context, caller auth.Caller, input internalorders.CheckoutInput) ([]models.Order, error)
	getFn      func(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error)
	listFn     func(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error)
}

func (s *stubConsumerOps) PlaceOrder(ctx context.Context, caller auth.Caller, input internalorders.PlaceOrderInput) (*models.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, caller, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s *stubConsumerOps) Checkout(ctx context.Context, caller auth.Caller, input internalorders.CheckoutInput) ([]models.Order, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, caller, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s *stubConsumerOps) Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, caller, orderID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubConsumerOps) List(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, caller, params)
	}
	return &internalorders.ListResult{}, nil
}

type stubSupplierOps struct {
	updateFn func(ctx context.Context, caller auth.Caller, input internalorders.UpdateStatusInput) (*models.Order, error)
	getFn    func(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error)
	listFn   func(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error)
}

func (s *stubSupplierOps) UpdateStatus(ctx context.Context, caller auth.Caller, input internalorders.UpdateStatusInput) (*models.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, caller, input)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s *stubSupplierOps) Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, caller, orderID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubSupplierOps) List(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, caller, params)
	}
	return &internalorders.ListResult{}, nil
}

type stubOrdersService struct {
	consumer *stubConsumerOps
	supplier *stubSupplierOps
}

func (s stubOrdersService) Consumer() internalorders.ConsumerOrderOps { return s.consumer }

func (s stubOrdersService) Supplier() internalorders.SupplierOrderOps { return s.supplier }

func newStubService() stubOrdersService {
	return stubOrdersService{consumer: &stubConsumerOps{}, supplier: &stubSupplierOps{}}
}

func withCaller(req *http.Request, role enums.Role) (*http.Request, auth.Caller) {
	caller := auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: role}
	return req.WithContext(middleware.WithCaller(req.Context(), caller)), caller
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		rc = chi.NewRouteContext()
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}
	rc.URLParams.Add(key, value)
	return req
}

func sampleOrder(consumerID, supplierID uuid.UUID, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		ConsumerID: consumerID,
		SupplierID: supplierID,
		Status:     status,
		TotalCents: 1250,
		Version:    1,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), ProductName: "Flour 25kg", Qty: 1, UnitPriceCents: 1250, LineTotalCents: 1250},
		},
	}
}

func TestPlaceOrderCreatesOrder(t *testing.T) {
	svc := newStubService()
	supplierID := uuid.New()
	productID := uuid.New()
	svc.consumer.placeFn = func(ctx context.Context, caller auth.Caller, input internalorders.PlaceOrderInput) (*models.Order, error) {
		if input.SupplierID != supplierID {
			t.Fatalf("unexpected supplier %s", input.SupplierID)
		}
		if len(input.Lines) != 1 || input.Lines[0].ProductID != productID || input.Lines[0].Qty != 2 {
			t.Fatalf("unexpected lines %+v", input.Lines)
		}
		return sampleOrder(caller.AccountID, supplierID, enums.OrderStatusPending), nil
	}

	body := `{"supplier_id":"` + supplierID.String() + `","items":[{"product_id":"` + productID.String() + `","qty":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req, _ = withCaller(req, enums.RoleConsumer)
	resp := httptest.NewRecorder()
	PlaceOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data internalorders.OrderView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
	if envelope.Data.TotalDisplay != "12.50" {
		t.Fatalf("unexpected total display %q", envelope.Data.TotalDisplay)
	}
}

func TestPlaceOrderRejectsEmptyItems(t *testing.T) {
	svc := newStubService()
	body := `{"supplier_id":"` + uuid.NewString() + `","items":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req, _ = withCaller(req, enums.RoleConsumer)
	resp := httptest.NewRecorder()
	PlaceOrder(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPlaceOrderRequiresCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	PlaceOrder(newStubService(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCheckoutReturnsOneOrderPerSupplier(t *testing.T) {
	svc := newStubService()
	svc.consumer.checkoutFn = func(ctx context.Context, caller auth.Caller, input internalorders.CheckoutInput) ([]models.Order, error) {
		if len(input.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(input.Lines))
		}
		return []models.Order{
			*sampleOrder(caller.AccountID, uuid.New(), enums.OrderStatusPending),
			*sampleOrder(caller.AccountID, uuid.New(), enums.OrderStatusPending),
		}, nil
	}

	body := `{"items":[{"product_id":"` + uuid.NewString() + `","qty":1},{"product_id":"` + uuid.NewString() + `","qty":3}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/checkout", strings.NewReader(body))
	req, _ = withCaller(req, enums.RoleConsumer)
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Orders []internalorders.OrderView `json:"orders"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(envelope.Data.Orders))
	}
}

func TestListUsesSupplierPerspective(t *testing.T) {
	svc := newStubService()
	called := false
	svc.supplier.listFn = func(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error) {
		called = true
		if params.Limit != 5 {
			t.Fatalf("unexpected limit %d", params.Limit)
		}
		if params.Status == nil || *params.Status != enums.OrderStatusAccepted {
			t.Fatal("status filter not parsed")
		}
		return &internalorders.ListResult{
			Items:  []models.Order{*sampleOrder(uuid.New(), caller.AccountID, enums.OrderStatusAccepted)},
			Cursor: "next",
		}, nil
	}
	svc.consumer.listFn = func(ctx context.Context, caller auth.Caller, params internalorders.ListParams) (*internalorders.ListResult, error) {
		t.Fatal("consumer list should not be called for supplier staff")
		return nil, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&status=accepted", nil)
	req, _ = withCaller(req, enums.RoleSalesRep)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("expected supplier list")
	}
	var envelope struct {
		Data listResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Cursor != "next" || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil)
	req, _ = withCaller(req, enums.RoleConsumer)
	resp := httptest.NewRecorder()
	List(newStubService(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil)
	req, _ = withCaller(req, enums.RoleConsumer)
	req = withRouteParam(req, "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	Detail(newStubService(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestDetailInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/bad", nil)
	req, _ = withCaller(req, enums.RoleConsumer)
	req = withRouteParam(req, "orderId", "bad")
	resp := httptest.NewRecorder()
	Detail(newStubService(), nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateStatusPassesExpectedVersion(t *testing.T) {
	svc := newStubService()
	orderID := uuid.New()
	svc.supplier.updateFn = func(ctx context.Context, caller auth.Caller, input internalorders.UpdateStatusInput) (*models.Order, error) {
		if input.OrderID != orderID {
			t.Fatalf("unexpected order %s", input.OrderID)
		}
		if input.Target != enums.OrderStatusInProgress {
			t.Fatalf("unexpected target %s", input.Target)
		}
		if input.ExpectedVersion == nil || *input.ExpectedVersion != 2 {
			t.Fatal("expected version not forwarded")
		}
		order := sampleOrder(uuid.New(), caller.AccountID, enums.OrderStatusInProgress)
		order.ID = orderID
		order.Version = 3
		return order, nil
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/x/status", strings.NewReader(`{"status":"in_progress","expected_version":2}`))
	req, _ = withCaller(req, enums.RoleSupplierAdmin)
	req = withRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateStatusMapsInvalidTransition(t *testing.T) {
	svc := newStubService()
	svc.supplier.updateFn = func(ctx context.Context, caller auth.Caller, input internalorders.UpdateStatusInput) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot move from completed to accepted")
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/x/status", strings.NewReader(`{"status":"accepted"}`))
	req, _ = withCaller(req, enums.RoleSupplierAdmin)
	req = withRouteParam(req, "orderId", uuid.NewString())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
