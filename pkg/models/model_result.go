package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelResultStatus is the outcome of one provider call.
type ModelResultStatus string

const (
	ModelResultCompleted ModelResultStatus = "completed"
	ModelResultFailed    ModelResultStatus = "failed"
)

// SearchResult is a search-result-like item cited by a provider response.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ModelResult is one provider's response to one prompt.
// There is at most one per (prompt, model) pair.
type ModelResult struct {
	ID               uuid.UUID         `json:"id"`
	PromptID         uuid.UUID         `json:"prompt_id"`
	Model            string            `json:"model"`
	Response         string            `json:"response"`
	ResponseMetadata map[string]any    `json:"response_metadata"`
	Status           ModelResultStatus `json:"status"`
	ErrorMessage     *string           `json:"error_message,omitempty"`
	Results          []SearchResult    `json:"results"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// AnalyzableResult is a completed model result joined with the topic it was produced for.
type AnalyzableResult struct {
	ModelResultID    uuid.UUID
	PromptID         uuid.UUID
	TopicID          uuid.UUID
	Model            string
	Response         string
	TopicName        string
	TopicDescription string
}
