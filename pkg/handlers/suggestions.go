package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/services"
)

// PromptSuggestionsRequest for POST /suggestions/prompts
type PromptSuggestionsRequest struct {
	TopicName   string `json:"topicName"`
	Description string `json:"description"`
}

// TopicSuggestionsRequest for POST /suggestions/topics
type TopicSuggestionsRequest struct {
	Context string `json:"context"`
}

// SuggestionsResponse wraps either kind of suggestion list.
type SuggestionsResponse[T any] struct {
	Suggestions []T `json:"suggestions"`
}

// SuggestionHandler serves generated prompt and topic ideas.
type SuggestionHandler struct {
	suggestions services.SuggestionService
	logger      *zap.Logger
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(suggestions services.SuggestionService, logger *zap.Logger) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, logger: logger}
}

// RegisterRoutes registers the suggestion handler's routes on the given mux.
func (h *SuggestionHandler) RegisterRoutes(mux *http.ServeMux, authOnly RouteMiddleware) {
	mux.HandleFunc("POST /suggestions/prompts", authOnly(h.Prompts))
	mux.HandleFunc("POST /suggestions/topics", authOnly(h.Topics))
}

// Prompts handles POST /suggestions/prompts
func (h *SuggestionHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	var req PromptSuggestionsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.TopicName == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Topic name is required")
		return
	}

	writeOK(w, h.logger, SuggestionsResponse[services.PromptSuggestion]{
		Suggestions: h.suggestions.PromptSuggestions(r.Context(), req.TopicName, req.Description),
	})
}

// Topics handles POST /suggestions/topics
func (h *SuggestionHandler) Topics(w http.ResponseWriter, r *http.Request) {
	var req TopicSuggestionsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	writeOK(w, h.logger, SuggestionsResponse[services.TopicSuggestion]{
		Suggestions: h.suggestions.TopicSuggestions(r.Context(), req.Context),
	})
}
