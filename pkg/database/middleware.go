package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
)

// WithUserContext gives each request a connection scoped to the
// authenticated user. It must run after auth middleware.
func WithUserContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return withScope(logger, func(r *http.Request) (*UserScope, int, string) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			return nil, http.StatusUnauthorized, "Authentication required"
		}
		scope, err := db.WithUser(r.Context(), userID)
		if err != nil {
			logger.Error("Failed to acquire user connection",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			return nil, http.StatusInternalServerError, "Database connection error"
		}
		return scope, 0, ""
	})
}

// WithSystemContext gives each request an unscoped connection. Only
// endpoints that act for no particular user (the billing webhook) use it.
func WithSystemContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return withScope(logger, func(r *http.Request) (*UserScope, int, string) {
		scope, err := db.WithoutUser(r.Context())
		if err != nil {
			logger.Error("Failed to acquire system connection", zap.Error(err))
			return nil, http.StatusInternalServerError, "Database connection error"
		}
		return scope, 0, ""
	})
}

// UserScopeHandler is WithUserContext for http.Handler chains such as the MCP endpoint.
func UserScopeHandler(db *DB, logger *zap.Logger) func(http.Handler) http.Handler {
	mw := WithUserContext(db, logger)
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

type acquireFunc func(r *http.Request) (scope *UserScope, status int, message string)

func withScope(logger *zap.Logger, acquire acquireFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, status, message := acquire(r)
			if scope == nil {
				logger.Debug("Request rejected without database scope",
					zap.String("path", r.URL.Path),
					zap.Int("status", status))
				writeError(w, status, message)
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetUserScope(r.Context(), scope)))
		}
	}
}

// writeError writes the API's {"error": ...} body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
