package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/services"
)

type mockTopicService struct {
	topics []*models.Topic
	err    error
	userID uuid.UUID
}

func (m *mockTopicService) CreateTopicFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.Topic, error) {
	return nil, errors.New("not implemented")
}

func (m *mockTopicService) ListTopics(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error) {
	m.userID = userID
	return m.topics, m.err
}

func (m *mockTopicService) DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error {
	return errors.New("not implemented")
}

type mockProcessingService struct {
	results  []*models.ModelResult
	err      error
	promptID uuid.UUID
}

func (m *mockProcessingService) Process(ctx context.Context, promptID uuid.UUID) (int, error) {
	return 0, errors.New("not implemented")
}

func (m *mockProcessingService) ListResults(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error) {
	m.promptID = promptID
	return m.results, m.err
}

type mockMentionService struct {
	stats *models.MentionStats
	err   error
}

func (m *mockMentionService) AnalyzeMentions(ctx context.Context) (*services.AnalysisSummary, error) {
	return nil, errors.New("not implemented")
}

func (m *mockMentionService) ListMentions(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error) {
	return nil, errors.New("not implemented")
}

func (m *mockMentionService) Stats(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error) {
	return m.stats, m.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func withUser(ctx context.Context, userID uuid.UUID) context.Context {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}}
	return auth.WithClaims(ctx, claims, "token")
}

func newTestServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps)
	return s
}

// toolResponse is the parsed JSON-RPC response of a tools/call.
type toolResponse struct {
	Result *struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolResponse) text() string {
	if r.Result == nil || len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}

func callTool(t *testing.T, ctx context.Context, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	raw, err := json.Marshal(s.HandleMessage(ctx, body))
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// getTextContent extracts the text of the first content item.
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

var (
	_ services.TopicService            = (*mockTopicService)(nil)
	_ services.PromptProcessingService = (*mockProcessingService)(nil)
	_ services.MentionAnalysisService  = (*mockMentionService)(nil)
)
