package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/auth"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ParseTopicID extracts and validates the topic ID from the request path.
// Expects path parameter: topicId
func ParseTopicID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "topicId", "Invalid topic ID", logger)
}

// ParsePromptID extracts and validates the prompt ID from the request path.
// Expects path parameter: promptId
func ParsePromptID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "promptId", "Invalid prompt ID", logger)
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, message string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}

// requireUserID returns the authenticated user's ID, writing 401 if absent.
func requireUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, logger, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// decodeJSON decodes the request body into v, writing 400 on failure.
// An empty body decodes as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
