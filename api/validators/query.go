package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/tradelink-backend/pkg/errors"
)

// OptionalQuery returns the trimmed query value, or nil when absent.
func OptionalQuery(r *http.Request, key string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	return &raw
}

// ParseQueryInt reads key as an int within [min, max], falling back to defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := OptionalQuery(r, key)
	if raw == nil {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(*raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryBool reads key as a boolean flag. Absent means false.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := OptionalQuery(r, key)
	if raw == nil {
		return false, nil
	}
	value, err := strconv.ParseBool(*raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
