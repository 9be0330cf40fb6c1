package models

import (
	"time"

	"github.com/google/uuid"
)

// Topic is a brand or entity a user tracks.
type Topic struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Logo        string    `json:"logo"` // Domain the topic was created from
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	Prompts     []*Prompt `json:"prompts,omitempty"`
}
