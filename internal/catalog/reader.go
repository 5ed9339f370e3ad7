package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultTimeout = 3 * time.Second

var hundred = decimal.NewFromInt(100)

// Product is the catalog view an order snapshots at creation time.
type Product struct {
	ID         uuid.UUID
	SupplierID uuid.UUID
	Name       string
	Price      decimal.Decimal
}

// PriceCents converts the catalog price to integer cents, rounding half up.
func (p Product) PriceCents() int64 {
	return ToCents(p.Price)
}

// ToCents converts a decimal currency amount to integer cents, rounding half up.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents renders cents back into a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Reader is the read-only catalog collaborator.
type Reader interface {
	// Products returns the active products among ids. Unknown or inactive ids
	// are simply absent from the result. A zero supplierID searches every supplier.
	Products(ctx context.Context, supplierID uuid.UUID, ids []uuid.UUID) ([]Product, error)
}

type gormReader struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewReader returns a Reader over the products table. Each call is bounded by timeout.
func NewReader(db *gorm.DB, timeout time.Duration) (Reader, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog database required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &gormReader{db: db, timeout: timeout}, nil
}

func (r *gormReader) Products(ctx context.Context, supplierID uuid.UUID, ids []uuid.UUID) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ? AND is_active = ?", ids, true)
	if supplierID != uuid.Nil {
		query = query.Where("supplier_id = ?", supplierID)
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "catalog timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "catalog unavailable")
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, Product{
			ID:         row.ID,
			SupplierID: row.SupplierID,
			Name:       row.Name,
			Price:      row.Price,
		})
	}
	return products, nil
}
