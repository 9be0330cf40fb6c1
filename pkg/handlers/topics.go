package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/services"
)

// CreateTopicRequest for POST /topics
type CreateTopicRequest struct {
	URL string `json:"url"`
}

// TopicListResponse for GET /topics
type TopicListResponse struct {
	Topics []*models.Topic `json:"topics"`
}

// TopicHandler handles topic HTTP requests.
type TopicHandler struct {
	topics services.TopicService
	logger *zap.Logger
}

// NewTopicHandler creates a new topic handler.
func NewTopicHandler(topics services.TopicService, logger *zap.Logger) *TopicHandler {
	return &TopicHandler{topics: topics, logger: logger}
}

// RegisterRoutes registers the topic handler's routes on the given mux.
func (h *TopicHandler) RegisterRoutes(mux *http.ServeMux, userMiddleware RouteMiddleware) {
	mux.HandleFunc("GET /topics", userMiddleware(h.List))
	mux.HandleFunc("POST /topics", userMiddleware(h.Create))
	mux.HandleFunc("DELETE /topics/{topicId}", userMiddleware(h.Delete))
}

// List handles GET /topics
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	topics, err := h.topics.ListTopics(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list topics")
		return
	}
	if topics == nil {
		topics = []*models.Topic{}
	}
	writeOK(w, h.logger, TopicListResponse{Topics: topics})
}

// Create handles POST /topics
func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateTopicRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	topic, err := h.topics.CreateTopicFromURL(r.Context(), userID, req.URL)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create topic")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, topic); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /topics/{topicId}
func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	topicID, ok := ParseTopicID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.topics.DeleteTopic(r.Context(), userID, topicID); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete topic")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
