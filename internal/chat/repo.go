package chat

import (
	"context"
	"time"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists chat sessions and their messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.ChatSession) error
	FindSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	FindSessionByOrder(ctx context.Context, orderID uuid.UUID) (*models.ChatSession, error)
	ListSessions(ctx context.Context, params sessionListParams) ([]models.ChatSession, *pagination.Cursor, error)
	AssignSalesRep(ctx context.Context, sessionID, salesRepID uuid.UUID) (bool, error)
	CountSessionsByRep(ctx context.Context, supplierID uuid.UUID, repIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	CreateSystemMessage(ctx context.Context, message *models.ChatMessage) (bool, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ChatMessage, *pagination.Cursor, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error
}

type sessionListParams struct {
	ConsumerID *uuid.UUID
	SupplierID *uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a chat repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repositoryImpl) FindSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repositoryImpl) FindSessionByOrder(ctx context.Context, orderID uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).First(&session, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repositoryImpl) ListSessions(ctx context.Context, params sessionListParams) ([]models.ChatSession, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ChatSession{})
	if params.ConsumerID != nil {
		query = query.Where("consumer_id = ?", *params.ConsumerID)
	}
	if params.SupplierID != nil {
		query = query.Where("supplier_id = ?", *params.SupplierID)
	}

	var rows []models.ChatSession
	if err := pagination.Keyset(query, params.Cursor).Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(row models.ChatSession) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

// AssignSalesRep sets the rep only while the session is unassigned.
func (r *repositoryImpl) AssignSalesRep(ctx context.Context, sessionID, salesRepID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ? AND sales_rep_id IS NULL", sessionID).
		Updates(map[string]any{
			"sales_rep_id": salesRepID,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CountSessionsByRep(ctx context.Context, supplierID uuid.UUID, repIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(repIDs))
	if len(repIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		SalesRepID uuid.UUID
		Total      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Select("sales_rep_id, COUNT(*) AS total").
		Where("supplier_id = ? AND sales_rep_id IN ?", supplierID, repIDs).
		Group("sales_rep_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.SalesRepID] = row.Total
	}
	return counts, nil
}

func (r *repositoryImpl) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// CreateSystemMessage inserts once per (session_id, event_id) and reports
// whether a row was written.
func (r *repositoryImpl) CreateSystemMessage(ctx context.Context, message *models.ChatMessage) (bool, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(message)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListMessages returns newest first.
func (r *repositoryImpl) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ChatMessage, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("session_id = ?", sessionID)

	var rows []models.ChatMessage
	if err := pagination.Keyset(query, cursor).Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(row models.ChatMessage) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

func (r *repositoryImpl) TouchSession(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{"last_message_at": at, "updated_at": at}).Error
}
