package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
)

func newDeps() (*Deps, *mockTopicService, *mockProcessingService, *mockMentionService) {
	topics := &mockTopicService{}
	processing := &mockProcessingService{}
	mentions := &mockMentionService{}
	return &Deps{
		Version:    "test",
		Topics:     topics,
		Processing: processing,
		Mentions:   mentions,
		Logger:     zap.NewNop(),
	}, topics, processing, mentions
}

func TestRegisterAll_ListsEveryTool(t *testing.T) {
	deps, _, _, _ := newDeps()
	s := newTestServer(deps)

	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	var names []string
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"health", "list_topics", "get_prompt_results", "get_mention_stats"}, names)
}

func TestListTopics(t *testing.T) {
	deps, topics, _, _ := newDeps()
	userID := uuid.New()
	topics.topics = []*models.Topic{{
		ID:   uuid.New(),
		Name: "acme",
		Logo: "acme.com",
		Prompts: []*models.Prompt{
			{ID: uuid.New(), Content: "best crm", GeoRegion: "global", Status: models.PromptStatusCompleted},
		},
	}}
	s := newTestServer(deps)

	resp := callTool(t, withUser(context.Background(), userID), s, "list_topics", nil)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, userID, topics.userID)

	var out struct {
		Topics []topicSummary `json:"topics"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	require.Len(t, out.Topics, 1)
	assert.Equal(t, "acme.com", out.Topics[0].Domain)
	require.Len(t, out.Topics[0].Prompts, 1)
	assert.Equal(t, "completed", out.Topics[0].Prompts[0].Status)
}

func TestListTopics_Unauthenticated(t *testing.T) {
	deps, _, _, _ := newDeps()
	s := newTestServer(deps)

	resp := callTool(t, context.Background(), s, "list_topics", nil)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &errResp))
	assert.Equal(t, "unauthenticated", errResp.Code)
}

func TestGetPromptResults(t *testing.T) {
	deps, _, processing, _ := newDeps()
	promptID := uuid.New()
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failure := "rate limited"
	processing.results = []*models.ModelResult{
		{Model: "claude", Status: models.ModelResultFailed, ErrorMessage: &failure},
		{Model: "openai", Status: models.ModelResultCompleted, Response: "Acme leads", CompletedAt: &completed},
	}
	s := newTestServer(deps)

	resp := callTool(t, withUser(context.Background(), uuid.New()), s, "get_prompt_results",
		map[string]any{"prompt_id": " " + promptID.String() + " "})
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, promptID, processing.promptID)

	var out struct {
		PromptID string          `json:"prompt_id"`
		Results  []resultSummary `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.text()), &out))
	assert.Equal(t, promptID.String(), out.PromptID)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "rate limited", *out.Results[0].ErrorMessage)
	assert.Equal(t, "Acme leads", out.Results[1].Response)
}

func TestGetPromptResults_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing", map[string]any{}},
		{"not a uuid", map[string]any{"prompt_id": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _, _, _ := newDeps()
			s := newTestServer(deps)

			resp := callTool(t, withUser(context.Background(), uuid.New()), s, "get_prompt_results", tt.args)
			require.NotNil(t, resp.Result)
			assert.True(t, resp.Result.IsError)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(resp.text()), &errResp))
			assert.Equal(t, "invalid_request", errResp.Code)
		})
	}
}

func TestGetPromptResults_NotFound(t *testing.T) {
	deps, _, processing, _ := newDeps()
	processing.err = apperrors.ErrNotFound
	s := newTestServer(deps)

	resp := callTool(t, withUser(context.Background(), uuid.New()), s, "get_prompt_results",
		map[string]any{"prompt_id": uuid.NewString()})
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.text(), "not_found")
}

func TestGetMentionStats(t *testing.T) {
	deps, _, _, mentions := newDeps()
	mentions.stats = &models.MentionStats{Total: 5, Direct: 3, Competitive: 1, Positive: 2}
	s := newTestServer(deps)

	resp := callTool(t, withUser(context.Background(), uuid.New()), s, "get_mention_stats", nil)
	require.NotNil(t, resp.Result)
	assert.JSONEq(t, `{"total":5,"direct":3,"competitive":1,"positive":2}`, resp.text())
}

func TestGetMentionStats_SystemFailure(t *testing.T) {
	deps, _, _, mentions := newDeps()
	mentions.err = errors.New("connection refused")
	s := newTestServer(deps)

	resp := callTool(t, withUser(context.Background(), uuid.New()), s, "get_mention_stats", nil)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
}
