package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/llm"
)

const (
	promptSuggestionCount = 5
	topicSuggestionCount  = 8
	suggestionMaxTokens   = 2000
)

// PromptSuggestion is a search query proposed for a topic.
type PromptSuggestion struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// TopicSuggestion is a brand proposed for tracking.
type TopicSuggestion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// SuggestionService proposes prompts and topics. Failures are logged and
// produce an empty list rather than an error.
type SuggestionService interface {
	PromptSuggestions(ctx context.Context, topicName, description string) []PromptSuggestion
	TopicSuggestions(ctx context.Context, userContext string) []TopicSuggestion
}

type suggestionService struct {
	generator llm.ObjectGenerator
	logger    *zap.Logger
}

// NewSuggestionService creates a new suggestion service. generator may be
// nil, in which case no suggestions are produced.
func NewSuggestionService(generator llm.ObjectGenerator, logger *zap.Logger) SuggestionService {
	return &suggestionService{
		generator: generator,
		logger:    logger.Named("suggestions"),
	}
}

func (s *suggestionService) PromptSuggestions(ctx context.Context, topicName, description string) []PromptSuggestion {
	topicName = strings.TrimSpace(topicName)
	if s.generator == nil || topicName == "" {
		return []PromptSuggestion{}
	}

	var out struct {
		Suggestions []PromptSuggestion `json:"suggestions"`
	}
	err := s.generator.GenerateObject(ctx, llm.ObjectRequest{
		Name:      "prompt_suggestions",
		Prompt:    buildPromptSuggestionsPrompt(topicName, strings.TrimSpace(description)),
		MaxTokens: suggestionMaxTokens,
		Schema:    out,
	}, &out)
	if err != nil {
		s.logger.Error("Failed to generate prompt suggestions",
			zap.String("topic", topicName),
			zap.Error(err))
		return []PromptSuggestion{}
	}

	suggestions := make([]PromptSuggestion, 0, len(out.Suggestions))
	for _, p := range out.Suggestions {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		suggestions = append(suggestions, p)
	}
	return suggestions
}

func (s *suggestionService) TopicSuggestions(ctx context.Context, userContext string) []TopicSuggestion {
	if s.generator == nil {
		return []TopicSuggestion{}
	}

	var out struct {
		Suggestions []TopicSuggestion `json:"suggestions"`
	}
	err := s.generator.GenerateObject(ctx, llm.ObjectRequest{
		Name:      "topic_suggestions",
		Prompt:    buildTopicSuggestionsPrompt(strings.TrimSpace(userContext)),
		MaxTokens: suggestionMaxTokens,
		Schema:    out,
	}, &out)
	if err != nil {
		s.logger.Error("Failed to generate topic suggestions", zap.Error(err))
		return []TopicSuggestion{}
	}

	suggestions := make([]TopicSuggestion, 0, len(out.Suggestions))
	for _, t := range out.Suggestions {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		suggestions = append(suggestions, t)
	}
	return suggestions
}

var _ SuggestionService = (*suggestionService)(nil)
