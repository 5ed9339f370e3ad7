package complaints

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

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

const (
	uniqueOrderConstraint      = "uq_complaints_order_id"
	uniqueEscalationConstraint = "uq_escalations_complaint_id"
	maxReasonLength            = 2000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// accountNames resolves the names denormalized onto complaints and escalations.
type accountNames interface {
	Name(ctx context.Context, accountID uuid.UUID) (string, error)
	SupplierName(ctx context.Context, supplierID uuid.UUID) (string, error)
}

// ConsumerComplaintOps is what a consumer may do with complaints on their orders.
type ConsumerComplaintOps interface {
	File(ctx context.Context, caller auth.Caller, input FileInput) (*models.Complaint, error)
	Feedback(ctx context.Context, caller auth.Caller, input FeedbackInput) (*models.Complaint, error)
	Get(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error)
	List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error)
}

// SupplierComplaintOps is what supplier staff may do with complaints addressed to them.
type SupplierComplaintOps interface {
	Resolve(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error)
	Escalate(ctx context.Context, caller auth.Caller, input EscalateInput) (*models.Escalation, error)
	Escalation(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Escalation, error)
	Get(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error)
	List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error)
}

// FileInput opens a complaint against an order.
type FileInput struct {
	OrderID uuid.UUID
	Reason  *string
}

// FeedbackInput carries the consumer's verdict on a resolution.
type FeedbackInput struct {
	ComplaintID uuid.UUID
	Satisfied   bool
}

// EscalateInput escalates a complaint. Reason defaults to the complaint's own.
type EscalateInput struct {
	ComplaintID uuid.UUID
	Reason      *string
}

type ListParams struct {
	Status *enums.ComplaintStatus
	Limit  int
	Cursor string
}

type ListResult struct {
	Items  []models.Complaint
	Cursor string
}

// Service owns the complaint workflow.
type Service struct {
	repo     Repository
	tx       txRunner
	emitter  eventbus.Emitter
	orders   orderReader
	accounts accountNames
	lock     *ActionLock
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the complaint workflow.
func NewService(repo Repository, tx txRunner, emitter eventbus.Emitter, orders orderReader, accounts accountNames, lock *ActionLock, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "complaints repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order reader required")
	}
	if accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account directory required")
	}
	if lock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "action lock required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		emitter:  emitter,
		orders:   orders,
		accounts: accounts,
		lock:     lock,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) Consumer() ConsumerComplaintOps {
	return consumerOps{s}
}

func (s *Service) Supplier() SupplierComplaintOps {
	return supplierOps{s}
}

type consumerOps struct {
	s *Service
}

type supplierOps struct {
	s *Service
}

// File opens a complaint on an order the caller owns. Filing again for the
// same order returns the existing complaint.
func (c consumerOps) File(ctx context.Context, caller auth.Caller, input FileInput) (*models.Complaint, error) {
	s := c.s
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason := trimOptional(input.Reason)
	if reason != nil && utf8.RuneCountInString(*reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.ConsumerID != caller.AccountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	existing, err := s.repo.FindByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load complaint")
	}

	supplierName, err := s.accounts.SupplierName(ctx, order.SupplierID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	complaint := &models.Complaint{
		ID:           uuid.New(),
		OrderID:      order.ID,
		ConsumerID:   order.ConsumerID,
		SupplierID:   order.SupplierID,
		SupplierName: supplierName,
		FiledBy:      caller.UserID,
		Reason:       reason,
		Status:       enums.ComplaintStatusOpen,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, complaint); err != nil {
			return err
		}
		event := eventbus.NewEvent(eventbus.ComplaintFiled{
			ComplaintRef: ref(complaint),
			Reason:       complaint.Reason,
		}, caller.Actor())
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit complaint filed")
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqueOrderConstraint) {
			if existing, findErr := s.repo.FindByOrderID(ctx, order.ID); findErr == nil {
				return existing, nil
			}
		}
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create complaint")
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"complaint_id": complaint.ID.String(),
		"order_id":     complaint.OrderID.String(),
	})
	s.logg.Info(ctx, "complaint filed")
	return complaint, nil
}

// Feedback records the consumer's verdict on a resolved complaint. An
// unsatisfied verdict reopens it.
func (c consumerOps) Feedback(ctx context.Context, caller auth.Caller, input FeedbackInput) (*models.Complaint, error) {
	s := c.s
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	complaint, err := s.load(ctx, input.ComplaintID, func(c *models.Complaint) bool { return c.ConsumerID == caller.AccountID })
	if err != nil {
		return nil, err
	}

	act := actionSatisfied
	if !input.Satisfied {
		act = actionUnsatisfied
	}
	updated, err := apply(*complaint, act, s.now())
	if err != nil {
		return nil, err
	}

	var payload eventbus.Payload = eventbus.ComplaintFeedbackRecorded{ComplaintRef: ref(complaint), Satisfied: true}
	if !input.Satisfied {
		payload = eventbus.ComplaintReopened{ComplaintRef: ref(complaint)}
	}
	if err := s.persist(ctx, complaint, &updated, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, eventbus.NewEvent(payload, caller.Actor()))
	}); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"complaint_id": updated.ID.String(),
		"satisfied":    input.Satisfied,
		"status":       string(updated.Status),
	})
	s.logg.Info(ctx, "complaint feedback recorded")
	return &updated, nil
}

func (c consumerOps) Get(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	return c.s.load(ctx, complaintID, func(cm *models.Complaint) bool { return cm.ConsumerID == caller.AccountID })
}

func (c consumerOps) List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return c.s.list(ctx, listParams{ConsumerID: &accountID}, params)
}

// Resolve closes an open or escalated complaint.
func (sp supplierOps) Resolve(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error) {
	s := sp.s
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	complaint, err := s.load(ctx, complaintID, func(c *models.Complaint) bool { return c.SupplierID == caller.AccountID })
	if err != nil {
		return nil, err
	}
	updated, err := apply(*complaint, actionResolve, s.now())
	if err != nil {
		return nil, err
	}

	release, err := s.lock.Acquire(ctx, complaint)
	if err != nil {
		return nil, err
	}
	err = s.persist(ctx, complaint, &updated, func(tx *gorm.DB) error {
		return s.emitter.Emit(ctx, tx, eventbus.NewEvent(eventbus.ComplaintResolved{ComplaintRef: ref(complaint)}, caller.Actor()))
	})
	if err != nil {
		s.release(ctx, release, complaint.ID)
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"complaint_id": updated.ID.String()})
	s.logg.Info(ctx, "complaint resolved")
	return &updated, nil
}

// Escalate marks an open complaint in progress and writes the escalation
// record. A complaint is escalated at most once.
func (sp supplierOps) Escalate(ctx context.Context, caller auth.Caller, input EscalateInput) (*models.Escalation, error) {
	s := sp.s
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	complaint, err := s.load(ctx, input.ComplaintID, func(c *models.Complaint) bool { return c.SupplierID == caller.AccountID })
	if err != nil {
		return nil, err
	}
	updated, err := apply(*complaint, actionEscalate, s.now())
	if err != nil {
		return nil, err
	}
	consumerName, err := s.accounts.Name(ctx, complaint.ConsumerID)
	if err != nil {
		return nil, err
	}
	reason := trimOptional(input.Reason)
	if reason == nil {
		reason = complaint.Reason
	}
	if reason != nil && utf8.RuneCountInString(*reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is too long")
	}

	escalation := &models.Escalation{
		ID:           uuid.New(),
		ComplaintID:  complaint.ID,
		OrderID:      complaint.OrderID,
		SupplierID:   complaint.SupplierID,
		SupplierName: complaint.SupplierName,
		ConsumerID:   complaint.ConsumerID,
		ConsumerName: consumerName,
		Reason:       reason,
		EscalatedBy:  caller.UserID,
		CreatedAt:    *updated.EscalatedAt,
	}

	release, err := s.lock.Acquire(ctx, complaint)
	if err != nil {
		return nil, err
	}
	err = s.persist(ctx, complaint, &updated, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateEscalation(ctx, escalation); err != nil {
			if db.IsUniqueViolation(err, uniqueEscalationConstraint) {
				return invalidTransition(updated, actionEscalate)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escalation")
		}
		event := eventbus.NewEvent(eventbus.ComplaintEscalated{
			ComplaintRef: ref(complaint),
			EscalationID: escalation.ID,
			Reason:       escalation.Reason,
		}, caller.Actor())
		return s.emitter.Emit(ctx, tx, event)
	})
	if err != nil {
		s.release(ctx, release, complaint.ID)
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"complaint_id":  complaint.ID.String(),
		"escalation_id": escalation.ID.String(),
	})
	s.logg.Info(ctx, "complaint escalated")
	return escalation, nil
}

func (sp supplierOps) Escalation(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Escalation, error) {
	s := sp.s
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	complaint, err := s.load(ctx, complaintID, func(c *models.Complaint) bool { return c.SupplierID == caller.AccountID })
	if err != nil {
		return nil, err
	}
	escalation, err := s.repo.FindEscalation(ctx, complaint.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "complaint has not been escalated")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escalation")
	}
	return escalation, nil
}

func (sp supplierOps) Get(ctx context.Context, caller auth.Caller, complaintID uuid.UUID) (*models.Complaint, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	return sp.s.load(ctx, complaintID, func(c *models.Complaint) bool { return c.SupplierID == caller.AccountID })
}

func (sp supplierOps) List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return sp.s.list(ctx, listParams{SupplierID: &accountID}, params)
}

// persist writes updated over current with a version guard and runs emit in
// the same transaction.
func (s *Service) persist(ctx context.Context, current, updated *models.Complaint, emit func(tx *gorm.DB) error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Update(ctx, current.ID, current.Version, changes(*updated))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update complaint")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "complaint was modified concurrently; reload and retry")
		}
		updated.Version = current.Version + 1
		if err := emit(tx); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit complaint event")
		}
		return nil
	})
}

func (s *Service) release(ctx context.Context, release func(context.Context) error, complaintID uuid.UUID) {
	if err := release(ctx); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"complaint_id": complaintID.String()})
		s.logg.Warn(logCtx, "release complaint action lock: "+err.Error())
	}
}

func (s *Service) load(ctx context.Context, complaintID uuid.UUID, visible func(*models.Complaint) bool) (*models.Complaint, error) {
	if complaintID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "complaint id required")
	}
	complaint, err := s.repo.FindByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load complaint")
	}
	if !visible(complaint) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "complaint not found")
	}
	return complaint, nil
}

func (s *Service) list(ctx context.Context, query listParams, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Status = params.Status
	query.Limit = params.Limit
	query.Cursor = cursor

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list complaints")
	}
	return &ListResult{Items: rows, Cursor: pagination.NextCursor(next)}, nil
}

func ref(c *models.Complaint) eventbus.ComplaintRef {
	return eventbus.ComplaintRef{
		ComplaintID: c.ID,
		OrderID:     c.OrderID,
		ConsumerID:  c.ConsumerID,
		SupplierID:  c.SupplierID,
	}
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
