// Package auth verifies the storefront's session tokens. The storefront only
// cares about one identity fact, the current user's identifier; the cart
// resets whenever that value changes.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/netproxy/storefront/internal/platform/httpx"
	"github.com/netproxy/storefront/internal/platform/requestctx"
)

const bearerPrefix = "Bearer "

// ErrInvalidToken indicates the presented session token failed verification.
var ErrInvalidToken = errors.New("auth: invalid session token")

// SessionVerifier parses and validates HS256 session tokens.
type SessionVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewSessionVerifier builds a verifier for the given signing secret.
func NewSessionVerifier(secret string, clock func() time.Time) (*SessionVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if clock == nil {
		clock = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return clock().UTC() }),
	)
	return &SessionVerifier{secret: []byte(secret), parser: parser}, nil
}

// Verify returns the user id carried by the token.
func (v *SessionVerifier) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Issue signs a session token for the user. Used by tests and tooling; the
// production issuer lives in the platform's identity service.
func (v *SessionVerifier) Issue(userID string, ttl time.Duration, clock func() time.Time) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware resolves the request's identity. Requests without a token pass
// through as anonymous; requests with a bad token are rejected so a stale
// session can never read another user's cart.
func (v *SessionVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r.WithContext(requestctx.WithUserID(ctx, "")))
				return
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "malformed authorization header", http.StatusUnauthorized))
				return
			}
			userID, err := v.Verify(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid session token", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithUserID(ctx, userID)))
		})
	}
}
