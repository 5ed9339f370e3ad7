package orders

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/angelmondragon/tradelink-backend/internal/catalog"
	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingEmitter struct {
	events []eventbus.Event
	err    error
}

func (r *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event eventbus.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type stubCatalog struct {
	products []catalog.Product
	err      error
}

func (s stubCatalog) Products(_ context.Context, supplierID uuid.UUID, ids []uuid.UUID) ([]catalog.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []catalog.Product
	for _, product := range s.products {
		if !wanted[product.ID] {
			continue
		}
		if supplierID != uuid.Nil && product.SupplierID != supplierID {
			continue
		}
		out = append(out, product)
	}
	return out, nil
}

type stubLinks struct {
	linked map[uuid.UUID]bool
}

func (s stubLinks) IsLinked(_ context.Context, _ uuid.UUID, supplierID uuid.UUID) (bool, error) {
	return s.linked[supplierID], nil
}

type orderFixture struct {
	svc      *Service
	db       *gorm.DB
	emitter  *recordingEmitter
	consumer auth.Caller
	supplier auth.Caller
	widget   catalog.Product
	gadget   catalog.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &orderFixture{
		db:       db,
		emitter:  &recordingEmitter{},
		consumer: auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: enums.RoleConsumer},
		supplier: auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: enums.RoleSupplierAdmin},
	}
	f.widget = catalog.Product{ID: uuid.New(), SupplierID: f.supplier.AccountID, Name: "Widget", Price: decimal.RequireFromString("10.00")}
	f.gadget = catalog.Product{ID: uuid.New(), SupplierID: f.supplier.AccountID, Name: "Gadget", Price: decimal.RequireFromString("5.00")}

	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		f.emitter,
		stubCatalog{products: []catalog.Product{f.widget, f.gadget}},
		stubLinks{linked: map[uuid.UUID]bool{f.supplier.AccountID: true}},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// withRepo builds a second service over the fixture's database, as another
// API instance would.
func (f *orderFixture) withRepo(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(
		repo,
		gormTxRunner{db: f.db},
		f.emitter,
		stubCatalog{products: []catalog.Product{f.widget, f.gadget}},
		stubLinks{linked: map[uuid.UUID]bool{f.supplier.AccountID: true}},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	return svc
}

// snapshotReads answers FindByID with an order loaded before either writer
// ran, so two requests see the same version.
type snapshotReads struct {
	Repository
	snapshot *models.Order
}

func (r snapshotReads) WithTx(tx *gorm.DB) Repository {
	return snapshotReads{Repository: r.Repository.WithTx(tx), snapshot: r.snapshot}
}

func (r snapshotReads) FindByID(context.Context, uuid.UUID) (*models.Order, error) {
	order := *r.snapshot
	order.History = append([]models.OrderStatusHistory(nil), r.snapshot.History...)
	return &order, nil
}

func (f *orderFixture) place(t *testing.T) uuid.UUID {
	t.Helper()
	order, err := f.svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: f.supplier.AccountID,
		Lines: []Line{
			{ProductID: f.widget.ID, Qty: 2},
			{ProductID: f.gadget.ID, Qty: 1},
		},
	})
	require.NoError(t, err)
	return order.ID
}

func TestPlaceOrderThenFulfilBuildsHistory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	orderID := f.place(t)
	order, err := f.svc.Consumer().Get(ctx, f.consumer, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), order.TotalCents)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(1000), order.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2000), order.Items[0].LineTotalCents)

	for _, target := range []enums.OrderStatus{enums.OrderStatusAccepted, enums.OrderStatusInProgress, enums.OrderStatusCompleted} {
		_, err := f.svc.Supplier().UpdateStatus(ctx, f.supplier, UpdateStatusInput{OrderID: orderID, Target: target})
		require.NoError(t, err)
	}

	order, err = f.svc.Supplier().Get(ctx, f.supplier, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.Equal(t, 4, order.Version)

	var got []enums.OrderStatus
	for _, entry := range order.History {
		got = append(got, entry.Status)
	}
	assert.Equal(t, []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAccepted,
		enums.OrderStatusInProgress,
		enums.OrderStatusCompleted,
	}, got)

	require.Len(t, f.emitter.events, 4)
	assert.Equal(t, enums.EventOrderCreated, f.emitter.events[0].Type)
	changed, ok := f.emitter.events[3].Payload.(eventbus.OrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusInProgress, changed.OldStatus)
	assert.Equal(t, enums.OrderStatusCompleted, changed.NewStatus)
}

func TestUpdateStatusRejectsSkippedStates(t *testing.T) {
	f := newOrderFixture(t)
	orderID := f.place(t)

	_, err := f.svc.Supplier().UpdateStatus(context.Background(), f.supplier, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatusCompleted})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	_, err = f.svc.Supplier().UpdateStatus(context.Background(), f.supplier, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatus("shipped")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateStatusScopedToOwningSupplier(t *testing.T) {
	f := newOrderFixture(t)
	orderID := f.place(t)
	ctx := context.Background()

	other := auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: enums.RoleSupplierAdmin}
	_, err := f.svc.Supplier().UpdateStatus(ctx, other, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatusAccepted})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Supplier().UpdateStatus(ctx, f.consumer, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatusAccepted})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Consumer().Get(ctx, auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: enums.RoleConsumer}, orderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusChecksExpectedVersion(t *testing.T) {
	f := newOrderFixture(t)
	orderID := f.place(t)

	stale := 3
	_, err := f.svc.Supplier().UpdateStatus(context.Background(), f.supplier, UpdateStatusInput{
		OrderID:         orderID,
		Target:          enums.OrderStatusAccepted,
		ExpectedVersion: &stale,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	current := 1
	order, err := f.svc.Supplier().UpdateStatus(context.Background(), f.supplier, UpdateStatusInput{
		OrderID:         orderID,
		Target:          enums.OrderStatusAccepted,
		ExpectedVersion: &current,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, order.Version)
}

func TestConcurrentStatusUpdatesOnSameVersion(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	orderID := f.place(t)

	loaded, err := NewRepository(f.db).FindByID(ctx, orderID)
	require.NoError(t, err)
	first := f.withRepo(t, snapshotReads{Repository: NewRepository(f.db), snapshot: loaded})
	second := f.withRepo(t, snapshotReads{Repository: NewRepository(f.db), snapshot: loaded})
	emitted := len(f.emitter.events)

	accepted, err := first.Supplier().UpdateStatus(ctx, f.supplier, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted.Version)

	_, err = second.Supplier().UpdateStatus(ctx, f.supplier, UpdateStatusInput{OrderID: orderID, Target: enums.OrderStatusRejected})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	order, err := f.svc.Supplier().Get(ctx, f.supplier, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, order.Status)
	assert.Equal(t, 2, order.Version)
	require.Len(t, order.History, len(loaded.History)+1)
	assert.Equal(t, enums.OrderStatusAccepted, order.History[len(order.History)-1].Status)
	assert.Len(t, f.emitter.events, emitted+1)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	cases := map[string]PlaceOrderInput{
		"no lines":         {SupplierID: f.supplier.AccountID},
		"missing supplier": {Lines: []Line{{ProductID: f.widget.ID, Qty: 1}}},
		"zero qty":         {SupplierID: f.supplier.AccountID, Lines: []Line{{ProductID: f.widget.ID, Qty: 0}}},
		"foreign product":  {SupplierID: f.supplier.AccountID, Lines: []Line{{ProductID: uuid.New(), Qty: 1}}},
		"huge qty":         {SupplierID: f.supplier.AccountID, Lines: []Line{{ProductID: f.widget.ID, Qty: math.MaxInt}}},
		"merged qty":       {SupplierID: f.supplier.AccountID, Lines: []Line{{ProductID: f.widget.ID, Qty: maxLineQty}, {ProductID: f.widget.ID, Qty: 1}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Consumer().PlaceOrder(ctx, f.consumer, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.emitter.events)
}

func TestPlaceOrderAcceptsQuantityAtLimit(t *testing.T) {
	f := newOrderFixture(t)
	order, err := f.svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: f.supplier.AccountID,
		Lines: []Line{
			{ProductID: f.gadget.ID, Qty: maxLineQty - 1},
			{ProductID: f.gadget.ID, Qty: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, maxLineQty, order.Items[0].Qty)
	assert.Equal(t, int64(maxLineQty)*500, order.TotalCents)
}

func TestPlaceOrderRequiresLink(t *testing.T) {
	f := newOrderFixture(t)
	stranger := uuid.New()
	product := catalog.Product{ID: uuid.New(), SupplierID: stranger, Name: "Bolt", Price: decimal.RequireFromString("1.25")}
	svc, err := NewService(NewRepository(f.db), gormTxRunner{db: f.db}, f.emitter,
		stubCatalog{products: []catalog.Product{product}}, stubLinks{},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	_, err = svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: stranger,
		Lines:      []Line{{ProductID: product.ID, Qty: 1}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestPlaceOrderMergesRepeatedProducts(t *testing.T) {
	f := newOrderFixture(t)
	order, err := f.svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: f.supplier.AccountID,
		Lines: []Line{
			{ProductID: f.widget.ID, Qty: 1},
			{ProductID: f.widget.ID, Qty: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Qty)
	assert.Equal(t, int64(3000), order.TotalCents)
}

func TestPlaceOrderSurfacesCatalogOutage(t *testing.T) {
	f := newOrderFixture(t)
	outage := pkgerrors.New(pkgerrors.CodeUpstreamUnavailable, "catalog unavailable")
	svc, err := NewService(NewRepository(f.db), gormTxRunner{db: f.db}, f.emitter,
		stubCatalog{err: outage}, stubLinks{},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	_, err = svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: f.supplier.AccountID,
		Lines:      []Line{{ProductID: f.widget.ID, Qty: 1}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstreamUnavailable))
}

func TestPlaceOrderRollsBackWhenEmitFails(t *testing.T) {
	f := newOrderFixture(t)
	f.emitter.err = errors.New("outbox down")

	_, err := f.svc.Consumer().PlaceOrder(context.Background(), f.consumer, PlaceOrderInput{
		SupplierID: f.supplier.AccountID,
		Lines:      []Line{{ProductID: f.widget.ID, Qty: 1}},
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Table("orders").Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutSplitsBySupplier(t *testing.T) {
	f := newOrderFixture(t)
	second := uuid.New()
	bolt := catalog.Product{ID: uuid.New(), SupplierID: second, Name: "Bolt", Price: decimal.RequireFromString("0.50")}
	svc, err := NewService(NewRepository(f.db), gormTxRunner{db: f.db}, f.emitter,
		stubCatalog{products: []catalog.Product{f.widget, f.gadget, bolt}},
		stubLinks{linked: map[uuid.UUID]bool{f.supplier.AccountID: true, second: true}},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	created, err := svc.Consumer().Checkout(context.Background(), f.consumer, CheckoutInput{Lines: []Line{
		{ProductID: f.widget.ID, Qty: 1},
		{ProductID: bolt.ID, Qty: 4},
		{ProductID: f.gadget.ID, Qty: 2},
	}})
	require.NoError(t, err)
	require.Len(t, created, 2)

	totals := map[uuid.UUID]int64{}
	for _, order := range created {
		totals[order.SupplierID] = order.TotalCents
		assert.Equal(t, enums.OrderStatusPending, order.Status)
	}
	assert.Equal(t, int64(2000), totals[f.supplier.AccountID])
	assert.Equal(t, int64(200), totals[second])
	assert.Len(t, f.emitter.events, 2)
}

func TestCheckoutFailsWholeCartWhenAnySupplierUnlinked(t *testing.T) {
	f := newOrderFixture(t)
	second := uuid.New()
	bolt := catalog.Product{ID: uuid.New(), SupplierID: second, Name: "Bolt", Price: decimal.RequireFromString("0.50")}
	svc, err := NewService(NewRepository(f.db), gormTxRunner{db: f.db}, f.emitter,
		stubCatalog{products: []catalog.Product{f.widget, bolt}},
		stubLinks{linked: map[uuid.UUID]bool{f.supplier.AccountID: true}},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	_, err = svc.Consumer().Checkout(context.Background(), f.consumer, CheckoutInput{Lines: []Line{
		{ProductID: f.widget.ID, Qty: 1},
		{ProductID: bolt.ID, Qty: 1},
	}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	var count int64
	require.NoError(t, f.db.Table("orders").Count(&count).Error)
	assert.Zero(t, count)
}

func TestListScopesAndPaginates(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.place(t)
	}

	page, err := f.svc.Consumer().List(ctx, f.consumer, ListParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := f.svc.Consumer().List(ctx, f.consumer, ListParams{Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)

	accepted := enums.OrderStatusAccepted
	filtered, err := f.svc.Supplier().List(ctx, f.supplier, ListParams{Status: &accepted})
	require.NoError(t, err)
	assert.Empty(t, filtered.Items)

	other, err := f.svc.Supplier().List(ctx, auth.Caller{UserID: uuid.New(), AccountID: uuid.New(), Role: enums.RoleSalesRep}, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
