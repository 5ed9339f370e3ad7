package complaints

import (
	"context"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/angelmondragon/tradelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists complaints and their escalation audit records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Complaint, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int, fields map[string]any) (bool, error)
	CreateEscalation(ctx context.Context, escalation *models.Escalation) error
	FindEscalation(ctx context.Context, complaintID uuid.UUID) (*models.Escalation, error)
	List(ctx context.Context, params listParams) ([]models.Complaint, *pagination.Cursor, error)
}

type listParams struct {
	ConsumerID *uuid.UUID
	SupplierID *uuid.UUID
	Status     *enums.ComplaintStatus
	Limit      int
	Cursor     *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a complaints repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == uuid.Nil {
		complaint.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(complaint).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).First(&complaint, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

func (r *repositoryImpl) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.WithContext(ctx).First(&complaint, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &complaint, nil
}

// Update writes fields and bumps the version when expectedVersion still holds.
func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, expectedVersion int, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		updates[key] = value
	}
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CreateEscalation(ctx context.Context, escalation *models.Escalation) error {
	if escalation.ID == uuid.Nil {
		escalation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(escalation).Error
}

func (r *repositoryImpl) FindEscalation(ctx context.Context, complaintID uuid.UUID) (*models.Escalation, error) {
	var escalation models.Escalation
	if err := r.db.WithContext(ctx).First(&escalation, "complaint_id = ?", complaintID).Error; err != nil {
		return nil, err
	}
	return &escalation, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.Complaint, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Complaint{})
	if params.ConsumerID != nil {
		query = query.Where("consumer_id = ?", *params.ConsumerID)
	}
	if params.SupplierID != nil {
		query = query.Where("supplier_id = ?", *params.SupplierID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var rows []models.Complaint
	if err := pagination.Keyset(query, params.Cursor).Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.Complaint) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}
