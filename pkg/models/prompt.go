package models

import (
	"time"

	"github.com/google/uuid"
)

// PromptStatus is the processing state of a prompt.
type PromptStatus string

const (
	PromptStatusPending    PromptStatus = "pending"
	PromptStatusProcessing PromptStatus = "processing"
	PromptStatusCompleted  PromptStatus = "completed"
	PromptStatusFailed     PromptStatus = "failed"
)

// ProcessableStatuses are the states a prompt may be picked up for processing from.
// Failed prompts are re-entrant so a user can retry them.
var ProcessableStatuses = []PromptStatus{PromptStatusPending, PromptStatusFailed}

// IsValid reports whether s is a known prompt status.
func (s PromptStatus) IsValid() bool {
	switch s {
	case PromptStatusPending, PromptStatusProcessing, PromptStatusCompleted, PromptStatusFailed:
		return true
	}
	return false
}

// DefaultGeoRegion is used when a prompt is created without a region.
const DefaultGeoRegion = "global"

// Prompt is a search-style query tracked against a topic.
type Prompt struct {
	ID              uuid.UUID    `json:"id"`
	TopicID         uuid.UUID    `json:"topic_id"`
	UserID          uuid.UUID    `json:"user_id"`
	Content         string       `json:"content"`
	GeoRegion       string       `json:"geo_region"`
	Status          PromptStatus `json:"status"`
	VisibilityScore *float64     `json:"visibility_score,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
