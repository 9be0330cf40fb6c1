// Package mcp exposes read-only lookout data to MCP clients over streamable HTTP.
package mcp

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/mcp/tools"
)

const instructions = "Read-only access to your Lookout topics, tracked prompt results and brand mention statistics."

// Server serves the lookout tools on POST /mcp.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer registers every lookout tool when deps is non-nil.
func NewServer(name, version string, deps *tools.Deps, logger *zap.Logger) *Server {
	s := &Server{logger: logger.Named("mcp")}
	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithHooks(s.hooks()),
		server.WithRecovery(),
	)
	if deps != nil {
		tools.RegisterAll(s.mcp, deps)
	}
	return s
}

// hooks log each tool call with the caller's user ID, which the HTTP
// layer does not see once the body is handed to mcp-go.
func (s *Server) hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result *mcp.CallToolResult) {
		s.logger.Debug("Tool call completed",
			zap.String("tool", req.Params.Name),
			zap.String("user_id", callerID(ctx)),
			zap.Bool("is_error", result != nil && result.IsError))
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		fields := []zap.Field{
			zap.String("method", string(method)),
			zap.String("user_id", callerID(ctx)),
			zap.Error(err),
		}
		if req, ok := message.(*mcp.CallToolRequest); ok {
			fields = append(fields, zap.String("tool", req.Params.Name))
		}
		s.logger.Warn("MCP request failed", fields...)
	})
	return hooks
}

func callerID(ctx context.Context) string {
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		return id.String()
	}
	return ""
}

// AddTool registers a tool beyond the built-in set.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// Handler returns the stateless streamable HTTP transport. Every request
// carries its own bearer token, so no sessions are kept.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// RegisterRoutes mounts POST /mcp behind middleware, outermost first.
func (s *Server) RegisterRoutes(mux *http.ServeMux, middleware ...func(http.Handler) http.Handler) {
	handler := s.Handler()
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	mux.Handle("POST /mcp", handler)
	s.logger.Info("MCP endpoint registered", zap.String("path", "/mcp"), zap.Int("middleware", len(middleware)))
}
