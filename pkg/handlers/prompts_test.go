package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
)

func newPromptMux(processing *mockProcessingService, prompts *mockPromptService) *http.ServeMux {
	mux := http.NewServeMux()
	NewPromptHandler(processing, prompts, zap.NewNop()).RegisterRoutes(mux, passthrough)
	return mux
}

func TestPromptHandler_Process(t *testing.T) {
	processing := &mockProcessingService{count: 3}
	mux := newPromptMux(processing, &mockPromptService{})
	promptID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/prompts/process",
		strings.NewReader(fmt.Sprintf(`{"promptId":%q}`, promptID)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProcessPromptResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Prompt processed successfully", resp.Message)
	assert.Equal(t, 3, resp.Results)
	assert.Equal(t, []uuid.UUID{promptID}, processing.processed)
}

func TestPromptHandler_Process_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing id", `{}`, nil, http.StatusBadRequest, "Prompt ID is required"},
		{"empty body", ``, nil, http.StatusBadRequest, "Prompt ID is required"},
		{"malformed id", `{"promptId":"nope"}`, nil, http.StatusBadRequest, "Invalid prompt ID"},
		{"malformed json", `{"promptId":`, nil, http.StatusBadRequest, "Invalid request body"},
		{"not found", `{"promptId":"` + uuid.NewString() + `"}`, apperrors.ErrNotFound, http.StatusNotFound, "Prompt not found"},
		{"wrong state", `{"promptId":"` + uuid.NewString() + `"}`,
			fmt.Errorf("prompt is completed: %w", apperrors.ErrInvalidTransition),
			http.StatusConflict, "Prompt is not in a processable state"},
		{"failure", `{"promptId":"` + uuid.NewString() + `"}`, errors.New("database down"),
			http.StatusInternalServerError, "Failed to process prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newPromptMux(&mockProcessingService{err: tt.err}, &mockPromptService{})

			req := httptest.NewRequest(http.MethodPost, "/prompts/process", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, withUser(req, uuid.New()))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body.Error)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "database down", body.Details)
			}
		})
	}
}

func TestPromptHandler_Results(t *testing.T) {
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failure := "rate limited"
	processing := &mockProcessingService{results: []*models.ModelResult{
		{ID: uuid.New(), Model: "claude", Status: models.ModelResultFailed, ErrorMessage: &failure},
		{ID: uuid.New(), Model: "openai", Response: "Acme is great", Status: models.ModelResultCompleted, CompletedAt: &completed},
	}}
	mux := newPromptMux(processing, &mockPromptService{})

	req := httptest.NewRequest(http.MethodGet, "/prompts/"+uuid.NewString()+"/results", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string][]map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	require.Len(t, raw["results"], 2)

	first := raw["results"][0]
	assert.Equal(t, "claude", first["model"])
	assert.Equal(t, "failed", first["status"])
	assert.Equal(t, "rate limited", first["errorMessage"])
	assert.Nil(t, first["completedAt"])

	second := raw["results"][1]
	assert.Equal(t, "Acme is great", second["response"])
	assert.Equal(t, "2026-03-01T12:00:00Z", second["completedAt"])
}

func TestPromptHandler_Results_InvalidID(t *testing.T) {
	mux := newPromptMux(&mockProcessingService{}, &mockPromptService{})

	req := httptest.NewRequest(http.MethodGet, "/prompts/not-a-uuid/results", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromptHandler_Create(t *testing.T) {
	userID, topicID := uuid.New(), uuid.New()
	prompts := &mockPromptService{created: &models.Prompt{ID: uuid.New(), TopicID: topicID, Status: models.PromptStatusPending}}
	mux := newPromptMux(&mockProcessingService{}, prompts)

	body := fmt.Sprintf(`{"topicId":%q,"content":"best crm","geoRegion":"us"}`, topicID)
	req := httptest.NewRequest(http.MethodPost, "/prompts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{userID.String(), topicID.String(), "best crm", "us"}, prompts.lastArgs)
}

func TestPromptHandler_Create_LimitReached(t *testing.T) {
	prompts := &mockPromptService{createErr: apperrors.New(apperrors.ErrLimitReached, "Daily prompt limit reached (25). Upgrade your plan for more prompts.")}
	mux := newPromptMux(&mockProcessingService{}, prompts)

	body := fmt.Sprintf(`{"topicId":%q,"content":"best crm"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/prompts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, uuid.New()))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Daily prompt limit reached (25). Upgrade your plan for more prompts.", resp.Error)
}

func TestPromptHandler_Create_Unauthenticated(t *testing.T) {
	mux := newPromptMux(&mockProcessingService{}, &mockPromptService{})

	req := httptest.NewRequest(http.MethodPost, "/prompts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPromptHandler_List_EmptyIsArray(t *testing.T) {
	mux := newPromptMux(&mockProcessingService{}, &mockPromptService{})

	req := httptest.NewRequest(http.MethodGet, "/topics/"+uuid.NewString()+"/prompts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(req, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"prompts":[]}`, rec.Body.String())
}
