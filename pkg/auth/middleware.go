package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Middleware guards dashboard API routes.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates auth middleware backed by authService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth rejects unauthenticated requests and puts the caller's claims
// in the request context. A token whose subject is not a user id is a 400.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		switch {
		case errors.Is(err, ErrInvalidSubject):
			writeAuthError(w, http.StatusBadRequest, "Invalid user ID in token")
			return
		case err != nil:
			writeAuthError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

// writeAuthError writes the same {"error": ...} body the API handlers use.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
