package models

import (
	"time"

	"github.com/google/uuid"
)

// MentionType classifies how a brand is referenced.
type MentionType string

const (
	MentionDirect      MentionType = "direct"
	MentionIndirect    MentionType = "indirect"
	MentionCompetitive MentionType = "competitive"
)

// IsValid reports whether t is a known mention type.
func (t MentionType) IsValid() bool {
	return t == MentionDirect || t == MentionIndirect || t == MentionCompetitive
}

// Sentiment is the tone of a mention.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IsValid reports whether s is a known sentiment.
func (s Sentiment) IsValid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// Mention is a brand reference detected inside one model result.
// Position and Confidence are stored as text.
type Mention struct {
	ID             uuid.UUID   `json:"id"`
	PromptID       uuid.UUID   `json:"prompt_id"`
	TopicID        uuid.UUID   `json:"topic_id"`
	ModelResultID  uuid.UUID   `json:"model_result_id"`
	Model          string      `json:"model"`
	MentionType    MentionType `json:"mention_type"`
	Position       string      `json:"position"`
	Context        string      `json:"context"`
	Sentiment      Sentiment   `json:"sentiment"`
	Confidence     string      `json:"confidence"`
	ExtractedText  string      `json:"extracted_text"`
	CompetitorName *string     `json:"competitor_name,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`

	// TopicName is populated by listing queries that join the topic.
	TopicName string `json:"topic_name,omitempty"`
}

// MentionStats summarises a user's mentions.
type MentionStats struct {
	Total       int `json:"total"`
	Direct      int `json:"direct"`
	Competitive int `json:"competitive"`
	Positive    int `json:"positive"`
}
