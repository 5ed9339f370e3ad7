package links

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
	internallinks "github.com/angelmondragon/tradelink-backend/internal/links"
	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

type stubLinksService struct {
	requestFn func(ctx context.Context, caller auth.Caller, input internallinks.RequestInput) (*models.LinkRequest, error)
	decideFn  func(ctx context.Context, caller auth.Caller, input internallinks.DecideInput) (*models.LinkRequest, error)
	listFn    func(ctx context.Context, caller auth.Caller, params internallinks.ListParams) (*internallinks.ListResult, error)
}

func (s *stubLinksService) Request(ctx context.Context, caller auth.Caller, input internallinks.RequestInput) (*models.LinkRequest, error) {
	return s.requestFn(ctx, caller, input)
}

func (s *stubLinksService) Decide(ctx context.Context, caller auth.Caller, input internallinks.DecideInput) (*models.LinkRequest, error) {
	return s.decideFn(ctx, caller, input)
}

func (s *stubLinksService) IsLinked(ctx context.Context, consumerID, supplierID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubLinksService) List(ctx context.Context, caller auth.Caller, params internallinks.ListParams) (*internallinks.ListResult, error) {
	return s.listFn(ctx, caller, params)
}

func authed(req *http.Request, role enums.Role) *http.Request {
	caller := auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: role}
	return req.WithContext(middleware.WithCaller(req.Context(), caller))
}

func TestRequestCreatesPendingLink(t *testing.T) {
	supplierID := uuid.New()
	svc := &stubLinksService{
		requestFn: func(ctx context.Context, caller auth.Caller, input internallinks.RequestInput) (*models.LinkRequest, error) {
			if input.SupplierID != supplierID {
				t.Fatalf("unexpected supplier %s", input.SupplierID)
			}
			return &models.LinkRequest{ID: uuid.New(), ConsumerID: caller.AccountID, SupplierID: supplierID, Status: enums.LinkStatusPending}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/links", strings.NewReader(`{"supplier_id":"`+supplierID.String()+`","message":"hello"}`))
	resp := httptest.NewRecorder()
	Request(svc, nil).ServeHTTP(resp, authed(req, enums.RoleConsumer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data internallinks.LinkRequestView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.LinkStatusPending {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestRequestRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/links", strings.NewReader(`{"supplier_id":"`+uuid.NewString()+`","consumer_id":"x"}`))
	resp := httptest.NewRecorder()
	Request(&stubLinksService{}, nil).ServeHTTP(resp, authed(req, enums.RoleConsumer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDecideValidatesDecision(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/links/x/decision", strings.NewReader(`{"decision":"maybe"}`))
	req = authed(req, enums.RoleSupplierAdmin)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("requestId", uuid.NewString())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	Decide(&stubLinksService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestDecideForwardsForbidden(t *testing.T) {
	requestID := uuid.New()
	svc := &stubLinksService{
		decideFn: func(ctx context.Context, caller auth.Caller, input internallinks.DecideInput) (*models.LinkRequest, error) {
			if input.RequestID != requestID || input.Decision != enums.LinkDecisionBlock {
				t.Fatalf("unexpected input %+v", input)
			}
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sales reps cannot decide link requests")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/links/x/decision", strings.NewReader(`{"decision":"block"}`))
	req = authed(req, enums.RoleSalesRep)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("requestId", requestID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	resp := httptest.NewRecorder()
	Decide(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListParsesStatus(t *testing.T) {
	svc := &stubLinksService{
		listFn: func(ctx context.Context, caller auth.Caller, params internallinks.ListParams) (*internallinks.ListResult, error) {
			if params.Status == nil || *params.Status != enums.LinkStatusPending {
				t.Fatal("status filter not parsed")
			}
			return &internallinks.ListResult{Items: []models.LinkRequest{{ID: uuid.New(), Status: enums.LinkStatusPending}}}, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/links?status=pending", nil)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, authed(req, enums.RoleSupplierAdmin))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
