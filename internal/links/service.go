package links

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/db"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/angelmondragon/tradelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const uniquePairConstraint = "uq_link_requests_pair"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// supplierLookup confirms the addressed account exists and is a supplier.
type supplierLookup interface {
	SupplierName(ctx context.Context, supplierID uuid.UUID) (string, error)
}

// Service is the Link Request Registry.
type Service interface {
	Request(ctx context.Context, caller auth.Caller, input RequestInput) (*models.LinkRequest, error)
	Decide(ctx context.Context, caller auth.Caller, input DecideInput) (*models.LinkRequest, error)
	IsLinked(ctx context.Context, consumerID, supplierID uuid.UUID) (bool, error)
	List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error)
}

// RequestInput carries a consumer's request to trade with a supplier.
type RequestInput struct {
	SupplierID uuid.UUID
	Message    *string
}

// DecideInput carries a supplier's decision on a request.
type DecideInput struct {
	RequestID uuid.UUID
	Decision  enums.LinkDecision
}

// ListParams filters and paginates link requests for the caller's account.
type ListParams struct {
	Status *enums.LinkStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of link requests.
type ListResult struct {
	Items  []models.LinkRequest `json:"items"`
	Cursor string               `json:"cursor"`
}

type service struct {
	repo      Repository
	tx        txRunner
	emitter   eventbus.Emitter
	suppliers supplierLookup
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the link registry.
func NewService(repo Repository, tx txRunner, emitter eventbus.Emitter, suppliers supplierLookup, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "links repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter required")
	}
	if suppliers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "supplier lookup required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		emitter:   emitter,
		suppliers: suppliers,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Request creates a pending request, returns the open one, or re-opens a
// rejected one. Blocked pairs cannot request again.
func (s *service) Request(ctx context.Context, caller auth.Caller, input RequestInput) (*models.LinkRequest, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if _, err := s.suppliers.SupplierName(ctx, input.SupplierID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier not found")
		}
		return nil, err
	}
	message := trimOptional(input.Message)

	var result *models.LinkRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByPair(ctx, caller.AccountID, input.SupplierID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load link request")
		}

		if existing == nil {
			request := &models.LinkRequest{
				ID:          uuid.New(),
				ConsumerID:  caller.AccountID,
				SupplierID:  input.SupplierID,
				RequestedBy: caller.UserID,
				Status:      enums.LinkStatusPending,
				Message:     message,
			}
			if err := repo.Create(ctx, request); err != nil {
				return err
			}
			if err := s.materialize(ctx, repo, request); err != nil {
				return err
			}
			result = request
			return s.emitRequested(ctx, tx, caller, request)
		}

		switch existing.Status {
		case enums.LinkStatusPending, enums.LinkStatusAccepted:
			result = existing
			return nil
		case enums.LinkStatusBlocked:
			return pkgerrors.New(pkgerrors.CodeForbidden, "supplier has blocked link requests")
		}

		ok, err := repo.TransitionStatus(ctx, existing.ID, existing.Status, enums.LinkStatusPending, nil, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen link request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "link request changed concurrently")
		}
		existing.Status = enums.LinkStatusPending
		existing.DecidedBy = nil
		existing.DecidedAt = nil
		if err := s.materialize(ctx, repo, existing); err != nil {
			return err
		}
		result = existing
		return s.emitRequested(ctx, tx, caller, existing)
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniquePairConstraint) {
			existing, findErr := s.repo.FindByPair(ctx, caller.AccountID, input.SupplierID)
			if findErr == nil {
				return existing, nil
			}
		}
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create link request")
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"link_request_id": result.ID.String(),
		"supplier_id":     result.SupplierID.String(),
		"status":          string(result.Status),
	})
	s.logg.Info(ctx, "link request recorded")
	return result, nil
}

// Decide applies the addressed supplier's decision. Only pending requests can
// be accepted or rejected; block is allowed from any other state.
func (s *service) Decide(ctx context.Context, caller auth.Caller, input DecideInput) (*models.LinkRequest, error) {
	if err := caller.RequireSupplier(enums.RoleSupplierAdmin, enums.RoleManager); err != nil {
		return nil, err
	}
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid decision")
	}
	target := input.Decision.Status()

	var result *models.LinkRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByID(ctx, input.RequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "link request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load link request")
		}
		if request.SupplierID != caller.AccountID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "link request not found")
		}
		if !canDecide(request.Status, input.Decision) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "link request cannot be decided from "+string(request.Status)).
				WithDetails(map[string]any{"current_status": request.Status, "decision": input.Decision})
		}

		now := s.now()
		decidedBy := caller.UserID
		ok, err := repo.TransitionStatus(ctx, request.ID, request.Status, target, &decidedBy, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update link request")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "link request changed concurrently")
		}
		request.Status = target
		request.DecidedBy = &decidedBy
		request.DecidedAt = &now
		if err := s.materialize(ctx, repo, request); err != nil {
			return err
		}

		event := eventbus.NewEvent(eventbus.LinkDecided{
			RequestID:  request.ID,
			ConsumerID: request.ConsumerID,
			SupplierID: request.SupplierID,
			Status:     target,
		}, caller.Actor())
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit link decided")
		}
		result = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"link_request_id": result.ID.String(),
		"consumer_id":     result.ConsumerID.String(),
		"status":          string(result.Status),
	})
	s.logg.Info(ctx, "link request decided")
	return result, nil
}

// IsLinked reports whether the consumer may see and order from the supplier.
func (s *service) IsLinked(ctx context.Context, consumerID, supplierID uuid.UUID) (bool, error) {
	if consumerID == uuid.Nil || supplierID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "consumer and supplier ids required")
	}
	link, err := s.repo.FindLink(ctx, consumerID, supplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier link")
	}
	return link.Status == enums.LinkStatusAccepted, nil
}

// List returns requests sent by a consumer or addressed to a supplier,
// depending on the caller's side.
func (s *service) List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	query := listParams{Status: params.Status, Limit: params.Limit}
	accountID := caller.AccountID
	if caller.IsConsumer() {
		query.ConsumerID = &accountID
	} else {
		query.SupplierID = &accountID
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list link requests")
	}
	return &ListResult{Items: rows, Cursor: pagination.NextCursor(next)}, nil
}

func (s *service) materialize(ctx context.Context, repo Repository, request *models.LinkRequest) error {
	link := &models.SupplierLink{
		ConsumerID: request.ConsumerID,
		SupplierID: request.SupplierID,
		RequestID:  request.ID,
		Status:     request.Status,
		UpdatedAt:  s.now(),
	}
	if err := repo.UpsertLink(ctx, link); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update supplier link")
	}
	return nil
}

func (s *service) emitRequested(ctx context.Context, tx *gorm.DB, caller auth.Caller, request *models.LinkRequest) error {
	event := eventbus.NewEvent(eventbus.LinkRequested{
		RequestID:  request.ID,
		ConsumerID: request.ConsumerID,
		SupplierID: request.SupplierID,
	}, caller.Actor())
	if err := s.emitter.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit link requested")
	}
	return nil
}

func canDecide(current enums.LinkStatus, decision enums.LinkDecision) bool {
	if decision == enums.LinkDecisionBlock {
		return current != enums.LinkStatusBlocked
	}
	return current == enums.LinkStatusPending
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
