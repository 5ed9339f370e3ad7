package orders

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/tradelink-backend/internal/catalog"
	"github.com/angelmondragon/tradelink-backend/pkg/auth"
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
	maxLinesPerOrder = 200
	// maxLineQty bounds a product's quantity after repeated lines are merged.
	maxLineQty = 10000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// linkChecker gates ordering on an accepted consumer/supplier link.
type linkChecker interface {
	IsLinked(ctx context.Context, consumerID, supplierID uuid.UUID) (bool, error)
}

// ConsumerOrderOps is what a consumer may do with orders.
type ConsumerOrderOps interface {
	PlaceOrder(ctx context.Context, caller auth.Caller, input PlaceOrderInput) (*models.Order, error)
	Checkout(ctx context.Context, caller auth.Caller, input CheckoutInput) ([]models.Order, error)
	Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error)
}

// SupplierOrderOps is what supplier staff may do with orders addressed to them.
type SupplierOrderOps interface {
	UpdateStatus(ctx context.Context, caller auth.Caller, input UpdateStatusInput) (*models.Order, error)
	Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error)
}

// Line is one requested product and quantity.
type Line struct {
	ProductID uuid.UUID
	Qty       int
}

// PlaceOrderInput is a supplier-scoped cart selection.
type PlaceOrderInput struct {
	SupplierID uuid.UUID
	Lines      []Line
	Notes      *string
}

// CheckoutInput is a cart that may span several suppliers.
type CheckoutInput struct {
	Lines []Line
	Notes *string
}

// UpdateStatusInput requests a single status step. ExpectedVersion, when set,
// must match the stored version.
type UpdateStatusInput struct {
	OrderID         uuid.UUID
	Target          enums.OrderStatus
	ExpectedVersion *int
}

// ListParams filters and paginates orders for the caller's account.
type ListParams struct {
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult wraps a page of orders.
type ListResult struct {
	Items  []models.Order
	Cursor string
}

// Service owns order creation and status progression. Callers use the
// capability-scoped views returned by Consumer and Supplier.
type Service struct {
	repo    Repository
	tx      txRunner
	emitter eventbus.Emitter
	catalog catalog.Reader
	links   linkChecker
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the order store.
func NewService(repo Repository, tx txRunner, emitter eventbus.Emitter, reader catalog.Reader, links linkChecker, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event emitter required")
	}
	if reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog reader required")
	}
	if links == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "link checker required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		emitter: emitter,
		catalog: reader,
		links:   links,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Consumer returns the consumer-scoped operations.
func (s *Service) Consumer() ConsumerOrderOps {
	return consumerOps{s}
}

// Supplier returns the supplier-scoped operations.
func (s *Service) Supplier() SupplierOrderOps {
	return supplierOps{s}
}

type consumerOps struct {
	s *Service
}

type supplierOps struct {
	s *Service
}

func (c consumerOps) PlaceOrder(ctx context.Context, caller auth.Caller, input PlaceOrderInput) (*models.Order, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	lines, err := normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	products, err := c.s.catalog.Products(ctx, input.SupplierID, productIDs(lines))
	if err != nil {
		return nil, err
	}
	priced, err := priceLines(lines, products)
	if err != nil {
		return nil, err
	}
	if err := c.s.requireLinked(ctx, caller.AccountID, input.SupplierID); err != nil {
		return nil, err
	}

	order := c.s.buildOrder(caller, input.SupplierID, priced, trimOptional(input.Notes))
	if err := c.s.createOrders(ctx, caller, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// Checkout splits a multi-supplier cart into one order per supplier. Either all
// orders are created or none are.
func (c consumerOps) Checkout(ctx context.Context, caller auth.Caller, input CheckoutInput) ([]models.Order, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	lines, err := normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	products, err := c.s.catalog.Products(ctx, uuid.Nil, productIDs(lines))
	if err != nil {
		return nil, err
	}
	priced, err := priceLines(lines, products)
	if err != nil {
		return nil, err
	}

	bySupplier := map[uuid.UUID][]pricedLine{}
	for _, line := range priced {
		bySupplier[line.product.SupplierID] = append(bySupplier[line.product.SupplierID], line)
	}
	supplierIDs := make([]uuid.UUID, 0, len(bySupplier))
	for supplierID := range bySupplier {
		supplierIDs = append(supplierIDs, supplierID)
	}
	sort.Slice(supplierIDs, func(i, j int) bool {
		return bytes.Compare(supplierIDs[i][:], supplierIDs[j][:]) < 0
	})

	notes := trimOptional(input.Notes)
	created := make([]*models.Order, 0, len(supplierIDs))
	for _, supplierID := range supplierIDs {
		if err := c.s.requireLinked(ctx, caller.AccountID, supplierID); err != nil {
			return nil, err
		}
		created = append(created, c.s.buildOrder(caller, supplierID, bySupplier[supplierID], notes))
	}
	if err := c.s.createOrders(ctx, caller, created); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(created))
	for _, order := range created {
		out = append(out, *order)
	}
	return out, nil
}

func (c consumerOps) Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	return c.s.load(ctx, orderID, func(o *models.Order) bool { return o.ConsumerID == caller.AccountID })
}

func (c consumerOps) List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error) {
	if err := caller.RequireConsumer(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return c.s.list(ctx, listParams{ConsumerID: &accountID}, params)
}

// UpdateStatus advances the order by one legal step on behalf of its supplier.
func (sp supplierOps) UpdateStatus(ctx context.Context, caller auth.Caller, input UpdateStatusInput) (*models.Order, error) {
	s := sp.s
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	var (
		oldStatus enums.OrderStatus
		updated   *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return notFoundOr(err)
		}
		if order.SupplierID != caller.AccountID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if input.ExpectedVersion != nil && *input.ExpectedVersion != order.Version {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified; reload and retry").
				WithDetails(map[string]any{"current_version": order.Version})
		}
		if err := validateTransition(order.Status, input.Target); err != nil {
			return err
		}

		now := s.now()
		ok, err := repo.UpdateStatus(ctx, order.ID, order.Version, input.Target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently; reload and retry")
		}

		actorID := caller.UserID
		entry := models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Seq:       len(order.History) + 1,
			Status:    input.Target,
			ActorID:   &actorID,
			CreatedAt: now,
		}
		if err := repo.AppendHistory(ctx, &entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}

		event := eventbus.NewEvent(eventbus.OrderStatusChanged{
			OrderID:    order.ID,
			ConsumerID: order.ConsumerID,
			SupplierID: order.SupplierID,
			OldStatus:  order.Status,
			NewStatus:  input.Target,
		}, caller.Actor())
		if err := s.emitter.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status changed")
		}

		oldStatus = order.Status
		order.Status = input.Target
		order.Version++
		order.UpdatedAt = now
		order.History = append(order.History, entry)
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   updated.ID.String(),
		"old_status": string(oldStatus),
		"new_status": string(updated.Status),
	})
	s.logg.Info(ctx, "order status updated")
	return updated, nil
}

func (sp supplierOps) Get(ctx context.Context, caller auth.Caller, orderID uuid.UUID) (*models.Order, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	return sp.s.load(ctx, orderID, func(o *models.Order) bool { return o.SupplierID == caller.AccountID })
}

func (sp supplierOps) List(ctx context.Context, caller auth.Caller, params ListParams) (*ListResult, error) {
	if err := caller.RequireSupplier(); err != nil {
		return nil, err
	}
	accountID := caller.AccountID
	return sp.s.list(ctx, listParams{SupplierID: &accountID}, params)
}

func (s *Service) requireLinked(ctx context.Context, consumerID, supplierID uuid.UUID) error {
	linked, err := s.links.IsLinked(ctx, consumerID, supplierID)
	if err != nil {
		return err
	}
	if !linked {
		return pkgerrors.New(pkgerrors.CodeForbidden, "consumer is not linked to supplier").
			WithDetails(map[string]any{"supplier_id": supplierID})
	}
	return nil
}

func (s *Service) buildOrder(caller auth.Caller, supplierID uuid.UUID, lines []pricedLine, notes *string) *models.Order {
	now := s.now()
	order := &models.Order{
		ID:         uuid.New(),
		ConsumerID: caller.AccountID,
		SupplierID: supplierID,
		PlacedBy:   caller.UserID,
		Status:     enums.OrderStatusPending,
		Notes:      notes,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	var total int64
	for i, line := range lines {
		unit := line.product.PriceCents()
		extension := unit * int64(line.qty)
		total += extension
		order.Items = append(order.Items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      line.product.ID,
			ProductName:    line.product.Name,
			Qty:            line.qty,
			UnitPriceCents: unit,
			LineTotalCents: extension,
			Position:       i,
			CreatedAt:      now,
		})
	}
	order.TotalCents = total

	actorID := caller.UserID
	order.History = []models.OrderStatusHistory{{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Seq:       1,
		Status:    enums.OrderStatusPending,
		ActorID:   &actorID,
		CreatedAt: now,
	}}
	return order
}

func (s *Service) createOrders(ctx context.Context, caller auth.Caller, orders []*models.Order) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, order := range orders {
			if err := repo.Create(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			event := eventbus.NewEvent(eventbus.OrderCreated{
				OrderID:    order.ID,
				ConsumerID: order.ConsumerID,
				SupplierID: order.SupplierID,
				TotalCents: order.TotalCents,
				ItemCount:  len(order.Items),
			}, caller.Actor())
			if err := s.emitter.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, order := range orders {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"supplier_id": order.SupplierID.String(),
			"total_cents": order.TotalCents,
			"item_count":  len(order.Items),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return nil
}

func (s *Service) load(ctx context.Context, orderID uuid.UUID, visible func(*models.Order) bool) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if !visible(order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &ListResult{Items: rows, Cursor: pagination.NextCursor(next)}, nil
}

type pricedLine struct {
	product catalog.Product
	qty     int
}

// normalizeLines validates the request and merges repeated products, keeping
// first-seen order.
func normalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	if len(lines) > maxLinesPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many line items")
	}
	merged := make([]Line, 0, len(lines))
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if line.Qty > maxLineQty {
			return nil, quantityTooLarge(line.ProductID)
		}
		if pos, ok := index[line.ProductID]; ok {
			merged[pos].Qty += line.Qty
			if merged[pos].Qty > maxLineQty {
				return nil, quantityTooLarge(line.ProductID)
			}
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func quantityTooLarge(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity is too large").
		WithDetails(map[string]any{"product_id": productID, "max_qty": maxLineQty})
}

func productIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func priceLines(lines []Line, products []catalog.Product) ([]pricedLine, error) {
	byID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	priced := make([]pricedLine, 0, len(lines))
	var missing []string
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			missing = append(missing, line.ProductID.String())
			continue
		}
		priced = append(priced, pricedLine{product: product, qty: line.Qty})
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "products not offered by supplier").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return priced, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
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
