// Package mcpauth authenticates MCP requests and answers failures the way
// OAuth bearer clients expect (RFC 6750).
package mcpauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
)

const realm = "lookout"

// JSON-RPC code MCP clients treat as an authentication failure.
const jsonRPCUnauthorized = -32001

type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{authService: authService, logger: logger.Named("mcp-auth")}
}

// RequireAuth admits requests with a valid bearer token and stores the
// caller's claims in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP request rejected", zap.String("path", r.URL.Path), zap.Error(err))
			m.reject(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
	})
}

// challenge builds the WWW-Authenticate value. A request with no
// credentials gets a bare challenge, without an error code.
func challenge(err error) (header, description string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		description = "A bearer access token is required"
		return fmt.Sprintf(`Bearer realm=%q`, realm), description
	case errors.Is(err, auth.ErrMalformedToken):
		description = "A bearer access token is required"
		return fmt.Sprintf(`Bearer realm=%q, error="invalid_request", error_description=%q`, realm, description), description
	case errors.Is(err, auth.ErrMissingSubject), errors.Is(err, auth.ErrInvalidSubject):
		description = "The access token does not identify a user"
	default:
		description = "The access token is invalid or expired"
	}
	return fmt.Sprintf(`Bearer realm=%q, error="invalid_token", error_description=%q`, realm, description), description
}

func (m *Middleware) reject(w http.ResponseWriter, err error) {
	header, description := challenge(err)
	w.Header().Set("WWW-Authenticate", header)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": jsonRPCUnauthorized, "message": description},
	})
}
