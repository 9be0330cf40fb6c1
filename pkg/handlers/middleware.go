package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/services"
)

// RouteMiddleware wraps a single route handler.
type RouteMiddleware func(http.HandlerFunc) http.HandlerFunc

// Chain applies middlewares so the first one listed runs first.
func Chain(middlewares ...RouteMiddleware) RouteMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// ProvisionUser creates the caller's account on first request and keeps email
// and name in step with the token. It runs after auth and user scoping.
func ProvisionUser(users services.UserService, logger *zap.Logger) RouteMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok {
				writeError(w, logger, http.StatusUnauthorized, "Authentication required")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				writeError(w, logger, http.StatusBadRequest, "Invalid user ID in token")
				return
			}

			if _, err := users.Provision(r.Context(), userID, claims.Email, claims.Name); err != nil {
				writeServiceError(w, logger, err, "Failed to load user")
				return
			}
			next(w, r)
		}
	}
}
