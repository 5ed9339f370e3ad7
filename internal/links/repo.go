package links

import (
	"context"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists link requests and the materialized supplier links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.LinkRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LinkRequest, error)
	FindByPair(ctx context.Context, consumerID, supplierID uuid.UUID) (*models.LinkRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LinkStatus, decidedBy *uuid.UUID, at time.Time) (bool, error)
	UpsertLink(ctx context.Context, link *models.SupplierLink) error
	FindLink(ctx context.Context, consumerID, supplierID uuid.UUID) (*models.SupplierLink, error)
	List(ctx context.Context, params listParams) ([]models.LinkRequest, *pagination.Cursor, error)
}

type listParams struct {
	ConsumerID *uuid.UUID
	SupplierID *uuid.UUID
	Status     *enums.LinkStatus
	Limit      int
	Cursor     *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a links repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.LinkRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.LinkRequest, error) {
	var request models.LinkRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) FindByPair(ctx context.Context, consumerID, supplierID uuid.UUID) (*models.LinkRequest, error) {
	var request models.LinkRequest
	err := r.db.WithContext(ctx).
		Where("consumer_id = ? AND supplier_id = ?", consumerID, supplierID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// TransitionStatus moves the request from one status to another. It reports
// false when the row is no longer in the expected status.
func (r *repositoryImpl) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LinkStatus, decidedBy *uuid.UUID, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"decided_by": decidedBy,
		"decided_at": nil,
		"updated_at": at,
	}
	if decidedBy != nil {
		updates["decided_at"] = at
	}
	result := r.db.WithContext(ctx).
		Model(&models.LinkRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) UpsertLink(ctx context.Context, link *models.SupplierLink) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "consumer_id"}, {Name: "supplier_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"request_id", "status", "updated_at"}),
		}).
		Create(link).Error
}

func (r *repositoryImpl) FindLink(ctx context.Context, consumerID, supplierID uuid.UUID) (*models.SupplierLink, error) {
	var link models.SupplierLink
	err := r.db.WithContext(ctx).
		Where("consumer_id = ? AND supplier_id = ?", consumerID, supplierID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.LinkRequest, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.LinkRequest{})
	if params.ConsumerID != nil {
		query = query.Where("consumer_id = ?", *params.ConsumerID)
	}
	if params.SupplierID != nil {
		query = query.Where("supplier_id = ?", *params.SupplierID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var rows []models.LinkRequest
	if err := pagination.Keyset(query, params.Cursor).Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.LinkRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}
