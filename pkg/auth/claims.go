// Package auth authenticates lookout API callers. Tokens are JWTs issued by
// the identity provider whose subject is the lookout user id.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims lookout reads from a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// UserID parses the subject as the user's UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	if c == nil || c.Subject == "" {
		return uuid.Nil, ErrMissingSubject
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidSubject, err)
	}
	return id, nil
}

// principal is the authenticated caller attached to a request context.
type principal struct {
	claims *Claims
	token  string
	userID uuid.UUID
}

type principalKey struct{}

// WithClaims returns a context carrying the caller's claims and raw token.
// The user id is resolved once here; a subject that is not a UUID leaves
// the context without a user id.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	p := &principal{claims: claims, token: token}
	if id, err := claims.UserID(); err == nil {
		p.userID = id
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (*principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*principal)
	return p, ok && p != nil
}

// GetClaims returns the caller's claims, if the request was authenticated.
func GetClaims(ctx context.Context) (*Claims, bool) {
	p, ok := principalFrom(ctx)
	if !ok || p.claims == nil {
		return nil, false
	}
	return p.claims, true
}

// GetToken returns the raw bearer token the caller presented.
func GetToken(ctx context.Context) (string, bool) {
	p, ok := principalFrom(ctx)
	if !ok || p.token == "" {
		return "", false
	}
	return p.token, true
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := principalFrom(ctx)
	if !ok || p.userID == uuid.Nil {
		return uuid.Nil, false
	}
	return p.userID, true
}
