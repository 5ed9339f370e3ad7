package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradelink-backend/pkg/config"
	"github.com/angelmondragon/tradelink-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

// AccessTokenPayload is what the issuer knows about the caller at mint time. An empty
// JTI gets a random one; the JTI doubles as the Redis session id.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	AccountID uuid.UUID
	Role      enums.Role
	JTI       string
}

// AccessTokenClaims is the JWT body. The user id travels as the standard subject.
type AccessTokenClaims struct {
	AccountID uuid.UUID  `json:"acct"`
	Role      enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Caller converts verified claims into the identity services act for.
func (c *AccessTokenClaims) Caller() (Caller, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Caller{}, fmt.Errorf("subject is not a user id: %w", err)
	}
	caller := Caller{UserID: userID, AccountID: c.AccountID, Role: c.Role}
	return caller, caller.Validate()
}

func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	ttl := cfg.AccessTTL()
	switch {
	case cfg.Secret == "" || cfg.Issuer == "":
		return "", errors.New("jwt secret and issuer are required")
	case ttl <= 0:
		return "", errors.New("jwt expiration must be positive")
	case payload.UserID == uuid.Nil || payload.AccountID == uuid.Nil:
		return "", errors.New("user id and account id are required")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		AccountID: payload.AccountID,
		Role:      payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   payload.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. It does not check the
// session; that is the auth middleware's job.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}
