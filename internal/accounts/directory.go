package accounts

import (
	"context"
	"errors"

	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory is the read-only identity collaborator used by the domain services.
type Directory interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	Name(ctx context.Context, accountID uuid.UUID) (string, error)
	SupplierName(ctx context.Context, supplierID uuid.UUID) (string, error)
	User(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SupplierStaff(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
	SalesReps(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
	Managers(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error)
	ConsumerUsers(ctx context.Context, consumerID uuid.UUID) ([]uuid.UUID, error)
}

type directory struct {
	repo Repository
}

// NewDirectory builds a Directory over repo.
func NewDirectory(repo Repository) (Directory, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	return &directory{repo: repo}, nil
}

func (d *directory) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	account, err := d.repo.FindAccount(ctx, accountID)
	if err != nil {
		return nil, lookupError(err, "account")
	}
	return account, nil
}

func (d *directory) Name(ctx context.Context, accountID uuid.UUID) (string, error) {
	account, err := d.Get(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Name, nil
}

// SupplierName resolves the display name denormalized onto complaints and
// escalations. The account must be a supplier.
func (d *directory) SupplierName(ctx context.Context, supplierID uuid.UUID) (string, error) {
	account, err := d.Get(ctx, supplierID)
	if err != nil {
		return "", err
	}
	if account.Kind != enums.AccountKindSupplier {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account is not a supplier")
	}
	return account.Name, nil
}

func (d *directory) User(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := d.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user, nil
}

// SupplierStaff lists every active user acting for the supplier.
func (d *directory) SupplierStaff(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error) {
	return d.userIDs(ctx, supplierID, enums.RoleSupplierAdmin, enums.RoleSalesRep, enums.RoleManager)
}

func (d *directory) SalesReps(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error) {
	return d.userIDs(ctx, supplierID, enums.RoleSalesRep)
}

// Managers falls back to supplier admins when the supplier has no manager.
func (d *directory) Managers(ctx context.Context, supplierID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := d.userIDs(ctx, supplierID, enums.RoleManager)
	if err != nil || len(ids) > 0 {
		return ids, err
	}
	return d.userIDs(ctx, supplierID, enums.RoleSupplierAdmin)
}

func (d *directory) ConsumerUsers(ctx context.Context, consumerID uuid.UUID) ([]uuid.UUID, error) {
	return d.userIDs(ctx, consumerID, enums.RoleConsumer)
}

func (d *directory) userIDs(ctx context.Context, accountID uuid.UUID, roles ...enums.Role) ([]uuid.UUID, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	users, err := d.repo.ListUsers(ctx, accountID, roles)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "list account users")
	}
	ids := make([]uuid.UUID, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func lookupError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamUnavailable, err, "load "+entity)
}
