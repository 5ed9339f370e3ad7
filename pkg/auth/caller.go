package auth

import (
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/eventbus"
	"github.com/google/uuid"
)

// Caller is the authenticated identity a domain operation runs on behalf of.
// It is always derived from verified token claims, never from request bodies.
type Caller struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Role      enums.Role
}

// Validate rejects callers without a complete identity.
func (c Caller) Validate() error {
	if c.UserID == uuid.Nil || c.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if !c.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller role missing")
	}
	return nil
}

// RequireConsumer accepts only consumer-side callers.
func (c Caller) RequireConsumer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Role.Kind() != enums.AccountKindConsumer {
		return pkgerrors.New(pkgerrors.CodeForbidden, "consumer role required")
	}
	return nil
}

// RequireSupplier accepts supplier staff, optionally limited to roles.
func (c Caller) RequireSupplier(roles ...enums.Role) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Role.IsSupplierStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "supplier role required")
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if c.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "supplier role lacks rights")
}

// IsConsumer reports whether the caller acts for a consumer account.
func (c Caller) IsConsumer() bool {
	return c.Role.Kind() == enums.AccountKindConsumer
}

// Actor converts the caller into the event actor stamp.
func (c Caller) Actor() *eventbus.Actor {
	accountID := c.AccountID
	return &eventbus.Actor{UserID: c.UserID, AccountID: &accountID, Role: string(c.Role)}
}
