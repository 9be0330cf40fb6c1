package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/services"
)

// ProcessPromptRequest for POST /prompts/process
type ProcessPromptRequest struct {
	PromptID string `json:"promptId"`
}

// ProcessPromptResponse for POST /prompts/process
type ProcessPromptResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Results int    `json:"results"`
}

// ResultSummary is one provider result as listed by GET /prompts/{promptId}/results.
type ResultSummary struct {
	ID           uuid.UUID  `json:"id"`
	Model        string     `json:"model"`
	Response     string     `json:"response"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"errorMessage"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// ResultsResponse for GET /prompts/{promptId}/results
type ResultsResponse struct {
	Results []ResultSummary `json:"results"`
}

// CreatePromptRequest for POST /prompts
type CreatePromptRequest struct {
	TopicID   string `json:"topicId"`
	Content   string `json:"content"`
	GeoRegion string `json:"geoRegion"`
}

// PromptListResponse for GET /topics/{topicId}/prompts
type PromptListResponse struct {
	Prompts []*models.Prompt `json:"prompts"`
}

// PromptHandler handles prompt creation, processing and results.
type PromptHandler struct {
	processing services.PromptProcessingService
	prompts    services.PromptService
	logger     *zap.Logger
}

// NewPromptHandler creates a new prompt handler.
func NewPromptHandler(
	processing services.PromptProcessingService,
	prompts services.PromptService,
	logger *zap.Logger,
) *PromptHandler {
	return &PromptHandler{
		processing: processing,
		prompts:    prompts,
		logger:     logger,
	}
}

// RegisterRoutes registers the prompt handler's routes on the given mux.
func (h *PromptHandler) RegisterRoutes(mux *http.ServeMux, userMiddleware RouteMiddleware) {
	mux.HandleFunc("POST /prompts/process", userMiddleware(h.Process))
	mux.HandleFunc("GET /prompts/{promptId}/results", userMiddleware(h.Results))
	mux.HandleFunc("POST /prompts", userMiddleware(h.Create))
	mux.HandleFunc("GET /topics/{topicId}/prompts", userMiddleware(h.List))
}

// Process handles POST /prompts/process
func (h *PromptHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessPromptRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.PromptID) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Prompt ID is required")
		return
	}
	promptID, err := uuid.Parse(strings.TrimSpace(req.PromptID))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid prompt ID")
		return
	}

	count, err := h.processing.Process(r.Context(), promptID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Prompt not found")
		return
	case errors.Is(err, apperrors.ErrInvalidTransition):
		writeError(w, h.logger, http.StatusConflict, "Prompt is not in a processable state")
		return
	case err != nil:
		h.logger.Error("Failed to process prompt",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		if err := ErrorResponseWithDetails(w, http.StatusInternalServerError, "Failed to process prompt", err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	writeOK(w, h.logger, ProcessPromptResponse{
		Success: true,
		Message: "Prompt processed successfully",
		Results: count,
	})
}

// Results handles GET /prompts/{promptId}/results
func (h *PromptHandler) Results(w http.ResponseWriter, r *http.Request) {
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	results, err := h.processing.ListResults(r.Context(), promptID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Internal server error")
		return
	}

	resp := ResultsResponse{Results: make([]ResultSummary, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, ResultSummary{
			ID:           res.ID,
			Model:        res.Model,
			Response:     res.Response,
			Status:       string(res.Status),
			ErrorMessage: res.ErrorMessage,
			CompletedAt:  res.CompletedAt,
		})
	}
	writeOK(w, h.logger, resp)
}

// Create handles POST /prompts
func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreatePromptRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	topicID, err := uuid.Parse(req.TopicID)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid topic ID")
		return
	}

	prompt, err := h.prompts.CreatePrompt(r.Context(), userID, topicID, req.Content, req.GeoRegion)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create prompt")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, prompt); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /topics/{topicId}/prompts
func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	topicID, ok := ParseTopicID(w, r, h.logger)
	if !ok {
		return
	}

	prompts, err := h.prompts.ListPrompts(r.Context(), userID, topicID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list prompts")
		return
	}
	if prompts == nil {
		prompts = []*models.Prompt{}
	}
	writeOK(w, h.logger, PromptListResponse{Prompts: prompts})
}
