package accounts

import (
	"context"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the identity tables owned by the account provider.
type Repository interface {
	FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, accountID uuid.UUID, roles []enums.Role) ([]models.User, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an accounts repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repositoryImpl) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns active users of accountID, optionally restricted to roles,
// oldest first.
func (r *repositoryImpl) ListUsers(ctx context.Context, accountID uuid.UUID, roles []enums.Role) ([]models.User, error) {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("account_id = ? AND is_active = ?", accountID, true)
	if len(roles) > 0 {
		query = query.Where("role IN ?", roles)
	}
	var users []models.User
	if err := query.Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
