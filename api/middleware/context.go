package middleware

import (
	"context"

	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

type contextKey string

const ctxCaller contextKey = "caller"

// CallerFromContext returns the authenticated caller seeded by Auth.
func CallerFromContext(ctx context.Context) (auth.Caller, bool) {
	if ctx == nil {
		return auth.Caller{}, false
	}
	caller, ok := ctx.Value(ctxCaller).(auth.Caller)
	return caller, ok
}

// WithCaller injects the caller into the context for downstream handlers.
func WithCaller(ctx context.Context, caller auth.Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCaller, caller)
}

func UserIDFromContext(ctx context.Context) string {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return ""
	}
	return caller.UserID.String()
}

func RoleFromContext(ctx context.Context) string {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return ""
	}
	return string(caller.Role)
}

// RequireCallerFromContext is CallerFromContext for handlers that cannot run
// without an authenticated caller.
func RequireCallerFromContext(ctx context.Context) (auth.Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return auth.Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller missing")
	}
	return caller, nil
}
