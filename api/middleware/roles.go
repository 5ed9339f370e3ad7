package middleware

import (
	"net/http"

	"github.com/angelmondragon/tradelink-backend/api/responses"
	"github.com/angelmondragon/tradelink-backend/pkg/auth"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
	"github.com/angelmondragon/tradelink-backend/pkg/logger"
)

// RequireConsumer admits only consumer-side callers.
func RequireConsumer(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireCaller(logg, func(c auth.Caller) error { return c.RequireConsumer() })
}

// RequireSupplier admits supplier staff, optionally limited to roles.
func RequireSupplier(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return requireCaller(logg, func(c auth.Caller) error { return c.RequireSupplier(roles...) })
}

func requireCaller(logg *logger.Logger, check func(auth.Caller) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller missing"))
				return
			}
			if err := check(caller); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
