package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type topicSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Domain      string          `json:"domain"`
	Description string          `json:"description"`
	Prompts     []promptSummary `json:"prompts"`
}

type promptSummary struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	GeoRegion string `json:"geo_region"`
	Status    string `json:"status"`
}

// RegisterTopicTools adds list_topics.
func RegisterTopicTools(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_topics",
		mcp.WithDescription(
			"List the caller's tracked topics (brands) with their prompts and each prompt's processing status. "+
				"Use the prompt ids with get_prompt_results to read provider answers."),
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

		topics, err := deps.Topics.ListTopics(ctx, uid)
		if err != nil {
			return errorResult(err)
		}

		out := make([]topicSummary, 0, len(topics))
		for _, t := range topics {
			ts := topicSummary{
				ID:          t.ID.String(),
				Name:        t.Name,
				Domain:      t.Logo,
				Description: t.Description,
				Prompts:     make([]promptSummary, 0, len(t.Prompts)),
			}
			for _, p := range t.Prompts {
				ts.Prompts = append(ts.Prompts, promptSummary{
					ID:        p.ID.String(),
					Content:   p.Content,
					GeoRegion: p.GeoRegion,
					Status:    string(p.Status),
				})
			}
			out = append(out, ts)
		}
		return jsonResult(map[string]any{"topics": out})
	})
}
