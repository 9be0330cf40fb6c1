package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/logging"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: message})
}

// ErrorResponseWithDetails writes a JSON error response carrying the
// underlying failure, sanitized for display.
func ErrorResponseWithDetails(w http.ResponseWriter, statusCode int, message string, cause error) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: message, Details: logging.ErrorMessage(cause)})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrLimitReached):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// defaultMessages are shown when an error carries no user-facing message.
var defaultMessages = map[int]string{
	http.StatusNotFound:     "Not found",
	http.StatusBadRequest:   "Invalid request",
	http.StatusUnauthorized: "Authentication required",
	http.StatusForbidden:    "Plan limit reached",
	http.StatusConflict:     "Conflicting state",
}

// writeServiceError writes err with the status it maps to. Unexpected
// errors become 500 with failMessage and sanitized details.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, failMessage string) {
	status := statusForError(err)

	var writeErr error
	if status == http.StatusInternalServerError {
		logger.Error(failMessage, zap.Error(err))
		writeErr = ErrorResponseWithDetails(w, status, failMessage, err)
	} else {
		logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
		writeErr = ErrorResponse(w, status, apperrors.UserMessage(err, defaultMessages[status]))
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

// writeOK writes a 200 JSON response, logging encoding failures.
func writeOK(w http.ResponseWriter, logger *zap.Logger, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes a JSON error response, logging encoding failures.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
