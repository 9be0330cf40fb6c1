// Package tools provides the MCP tools exposed by lookout.
package tools

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/services"
)

// Pinger checks the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps contains the services MCP tools read from. Tool calls arrive with the
// caller's claims and database scope already in the context.
type Deps struct {
	Version    string
	DB         Pinger
	Topics     services.TopicService
	Processing services.PromptProcessingService
	Mentions   services.MentionAnalysisService
	Logger     *zap.Logger
}

// RegisterAll registers every lookout tool on s.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	RegisterHealthTool(s, deps.Version, deps.DB)
	RegisterTopicTools(s, deps)
	RegisterPromptTools(s, deps)
	RegisterMentionTools(s, deps)
}

// userID returns the authenticated caller.
func userID(ctx context.Context) (uuid.UUID, error) {
	id, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, apperrors.New(apperrors.ErrUnauthenticated, "authentication required")
	}
	return id, nil
}
