package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a tool result (IsError set) so the calling model sees
// the details instead of a bare protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for actionable errors (bad parameters, unknown ids). System
// failures should still be returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorResult converts a service error into a tool result when the caller
// can act on it. Anything else is returned as a Go error.
func errorResult(err error) (*mcp.CallToolResult, error) {
	code := errorCode(err)
	if code == "" {
		return nil, err
	}
	return NewErrorResult(code, apperrors.UserMessage(err, err.Error())), nil
}

// errorCode maps service errors to tool error codes. Unmapped errors yield "".
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return "invalid_request"
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, apperrors.ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	}
	return ""
}

// jsonResult marshals v as the text content of a successful result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
