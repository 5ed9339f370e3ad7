package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/tradelink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradelink-backend/pkg/db/models"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAccount(t *testing.T, db *gorm.DB, kind enums.AccountKind, name string) uuid.UUID {
	t.Helper()
	account := models.Account{ID: uuid.New(), Kind: kind, Name: name}
	require.NoError(t, db.Create(&account).Error)
	return account.ID
}

func seedUser(t *testing.T, db *gorm.DB, accountID uuid.UUID, role enums.Role, active bool) uuid.UUID {
	t.Helper()
	user := models.User{ID: uuid.New(), AccountID: accountID, Role: role, Name: string(role), IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	if !active {
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)
	}
	return user.ID
}

func TestDirectoryResolvesSupplierStaff(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	supplierID := seedAccount(t, db, enums.AccountKindSupplier, "Acme Supply")
	admin := seedUser(t, db, supplierID, enums.RoleSupplierAdmin, true)
	rep := seedUser(t, db, supplierID, enums.RoleSalesRep, true)
	seedUser(t, db, supplierID, enums.RoleSalesRep, false)
	manager := seedUser(t, db, supplierID, enums.RoleManager, true)

	dir, err := NewDirectory(NewRepository(db))
	require.NoError(t, err)

	name, err := dir.SupplierName(ctx, supplierID)
	require.NoError(t, err)
	require.Equal(t, "Acme Supply", name)

	staff, err := dir.SupplierStaff(ctx, supplierID)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{admin, rep, manager}, staff)

	reps, err := dir.SalesReps(ctx, supplierID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{rep}, reps)

	managers, err := dir.Managers(ctx, supplierID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{manager}, managers)
}

func TestManagersFallBackToAdmins(t *testing.T) {
	db := dbtest.Open(t)
	supplierID := seedAccount(t, db, enums.AccountKindSupplier, "Solo Supply")
	admin := seedUser(t, db, supplierID, enums.RoleSupplierAdmin, true)

	dir, err := NewDirectory(NewRepository(db))
	require.NoError(t, err)

	managers, err := dir.Managers(context.Background(), supplierID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{admin}, managers)
}

func TestSupplierNameRejectsConsumerAccount(t *testing.T) {
	db := dbtest.Open(t)
	consumerID := seedAccount(t, db, enums.AccountKindConsumer, "Corner Shop")

	dir, err := NewDirectory(NewRepository(db))
	require.NoError(t, err)

	_, err = dir.SupplierName(context.Background(), consumerID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = dir.Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

type failingRepo struct{}

func (failingRepo) FindAccount(context.Context, uuid.UUID) (*models.Account, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) FindUser(context.Context, uuid.UUID) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) ListUsers(context.Context, uuid.UUID, []enums.Role) ([]models.User, error) {
	return nil, errors.New("connection refused")
}

func TestDirectoryMapsFailuresToUpstreamUnavailable(t *testing.T) {
	dir, err := NewDirectory(failingRepo{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = dir.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstreamUnavailable))
	_, err = dir.SalesReps(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstreamUnavailable))
	_, err = dir.User(ctx, uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
