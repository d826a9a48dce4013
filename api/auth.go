/*
auth.go - JWT session tokens and route guards

PURPOSE:
  Login exchanges credentials for a signed JWT carrying the user id and
  role. The middleware validates the token on every request and stashes
  the claims in the request context; RequireAdmin additionally gates the
  admin routes.

TOKENS:
  HS256, issuer + expiry from configuration. Tokens are bearer-style:
  "Authorization: Bearer <token>". There is no refresh flow; a token
  simply expires and the client logs in again.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lssd/dutyclock/duty"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Claims is the JWT payload for a logged-in user.
type Claims struct {
	UserID string    `json:"uid"`
	Role   duty.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates session tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewAuthenticator(secret string, ttl time.Duration, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

// IssueToken signs a token for the user.
func (a *Authenticator) IssueToken(u *duty.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// parseToken validates a raw token string and returns its claims.
func (a *Authenticator) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware authenticates the request and stores the claims in context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header", nil)
			return
		}

		claims, err := a.parseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route to administrators. Must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFrom(r.Context())
		if claims == nil || claims.Role != duty.RoleAdmin {
			writeError(w, http.StatusForbidden, "administrator access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFrom extracts the authenticated claims, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}
