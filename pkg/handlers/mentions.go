package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/services"
)

// MentionListResponse for GET /mentions
type MentionListResponse struct {
	Mentions []*models.Mention `json:"mentions"`
}

// AnalyzeMentionsResponse for POST /mentions/analyze
type AnalyzeMentionsResponse struct {
	Success bool `json:"success"`
	*services.AnalysisSummary
}

// MentionHandler handles mention listing and analysis.
type MentionHandler struct {
	mentions services.MentionAnalysisService
	logger   *zap.Logger
}

// NewMentionHandler creates a new mention handler.
func NewMentionHandler(mentions services.MentionAnalysisService, logger *zap.Logger) *MentionHandler {
	return &MentionHandler{mentions: mentions, logger: logger}
}

// RegisterRoutes registers the mention handler's routes on the given mux.
// Analysis opens its own database scopes, so it only needs authentication.
func (h *MentionHandler) RegisterRoutes(mux *http.ServeMux, userMiddleware, authOnly RouteMiddleware) {
	mux.HandleFunc("GET /mentions", userMiddleware(h.List))
	mux.HandleFunc("GET /mentions/stats", userMiddleware(h.Stats))
	mux.HandleFunc("POST /mentions/analyze", authOnly(h.Analyze))
}

// List handles GET /mentions
func (h *MentionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	mentions, err := h.mentions.ListMentions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list mentions")
		return
	}
	if mentions == nil {
		mentions = []*models.Mention{}
	}
	writeOK(w, h.logger, MentionListResponse{Mentions: mentions})
}

// Stats handles GET /mentions/stats
func (h *MentionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.mentions.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load mention stats")
		return
	}
	writeOK(w, h.logger, stats)
}

// Analyze handles POST /mentions/analyze
func (h *MentionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	summary, err := h.mentions.AnalyzeMentions(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to analyze mentions")
		return
	}
	writeOK(w, h.logger, AnalyzeMentionsResponse{Success: true, AnalysisSummary: summary})
}
