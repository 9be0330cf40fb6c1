package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMentionTools adds get_mention_stats.
func RegisterMentionTools(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_mention_stats",
		mcp.WithDescription(
			"Summarize how the caller's brands are mentioned across provider answers: "+
				"total, direct, competitive and positive mention counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		uid, err := userID(ctx)
		if err != nil {
			return errorResult(err)
		}

		stats, err := deps.Mentions.Stats(ctx, uid)
		if err != nil {
			return errorResult(err)
		}
		return jsonResult(stats)
	})
}
