package tools

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type resultSummary struct {
	Model        string     `json:"model"`
	Status       string     `json:"status"`
	Response     string     `json:"response,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RegisterPromptTools adds get_prompt_results.
func RegisterPromptTools(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_prompt_results",
		mcp.WithDescription(
			"Get every provider's answer for a processed prompt, including failed providers and their error messages."),
		mcp.WithString(
			"prompt_id",
			mcp.Required(),
			mcp.Description("Prompt UUID as returned by list_topics"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := userID(ctx); err != nil {
			return errorResult(err)
		}

		raw, err := req.RequireString("prompt_id")
		if err != nil {
			return NewErrorResult("invalid_request", "prompt_id is required"), nil
		}
		promptID, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return NewErrorResult("invalid_request", "prompt_id must be a UUID"), nil
		}

		results, err := deps.Processing.ListResults(ctx, promptID)
		if err != nil {
			return errorResult(err)
		}

		out := make([]resultSummary, 0, len(results))
		for _, r := range results {
			out = append(out, resultSummary{
				Model:        r.Model,
				Status:       string(r.Status),
				Response:     r.Response,
				ErrorMessage: r.ErrorMessage,
				CompletedAt:  r.CompletedAt,
			})
		}
		return jsonResult(map[string]any{
			"prompt_id": promptID.String(),
			"results":   out,
		})
	})
}
