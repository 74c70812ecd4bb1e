package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// SessionClaims are the claims of a dashboard session token. The user is
// carried in the registered sub claim.
type SessionClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// SessionVerifier checks HMAC-signed dashboard session tokens.
type SessionVerifier struct {
	secret []byte
}

// NewSessionVerifier returns nil when secret is empty; callers treat a nil
// verifier as "forward tokens unchecked".
func NewSessionVerifier(secret string) *SessionVerifier {
	if secret == "" {
		return nil
	}
	return &SessionVerifier{secret: []byte(secret)}
}

// Verify parses and validates a token.
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired session token"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid session token"}
	}
	return claims, nil
}

// Sign issues a session token. Used by the CLI and tests.
func (v *SessionVerifier) Sign(sub, tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
