package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/repositories"
)

// TopicService manages the brands a user tracks.
type TopicService interface {
	// CreateTopicFromURL derives a topic from a website address, e.g.
	// "https://www.Acme.com/about" becomes topic "acme" with logo "acme.com".
	CreateTopicFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.Topic, error)
	// ListTopics returns the user's topics newest first, each with its prompts.
	ListTopics(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error)
	DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error
}

type topicService struct {
	topicRepo  repositories.TopicRepository
	promptRepo repositories.PromptRepository
	planLimits PlanLimitService
	logger     *zap.Logger
}

// NewTopicService creates a new topic service.
func NewTopicService(
	topicRepo repositories.TopicRepository,
	promptRepo repositories.PromptRepository,
	planLimits PlanLimitService,
	logger *zap.Logger,
) TopicService {
	return &topicService{
		topicRepo:  topicRepo,
		promptRepo: promptRepo,
		planLimits: planLimits,
		logger:     logger.Named("topics"),
	}
}

func (s *topicService) CreateTopicFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.Topic, error) {
	domain := cleanURL(rawURL)
	if domain == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "A valid URL is required")
	}

	if err := s.planLimits.CheckTopicLimit(ctx, userID); err != nil {
		return nil, err
	}

	name, _, _ := strings.Cut(domain, ".")
	topic := &models.Topic{
		UserID:      userID,
		Name:        name,
		Description: "Topic for " + domain,
		Logo:        domain,
		IsActive:    true,
	}
	if err := s.topicRepo.Create(ctx, topic); err != nil {
		return nil, err
	}

	s.logger.Info("Topic created",
		zap.String("user_id", userID.String()),
		zap.String("topic_id", topic.ID.String()),
		zap.String("domain", domain))
	return topic, nil
}

func (s *topicService) ListTopics(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error) {
	topics, err := s.topicRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompts, err := s.promptRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byTopic := make(map[uuid.UUID][]*models.Prompt, len(topics))
	for _, p := range prompts {
		byTopic[p.TopicID] = append(byTopic[p.TopicID], p)
	}
	for _, t := range topics {
		t.Prompts = byTopic[t.ID]
		if t.Prompts == nil {
			t.Prompts = []*models.Prompt{}
		}
	}
	return topics, nil
}

func (s *topicService) DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error {
	if err := s.topicRepo.Delete(ctx, userID, topicID); err != nil {
		return err
	}
	s.logger.Info("Topic deleted",
		zap.String("user_id", userID.String()),
		zap.String("topic_id", topicID.String()))
	return nil
}

// cleanURL reduces a URL to its lowercase host without "www.", port or path.
func cleanURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, rest, ok := strings.Cut(s, "://"); ok {
		s = rest
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if host, _, ok := strings.Cut(s, ":"); ok {
		s = host
	}
	return strings.TrimPrefix(s, "www.")
}

var _ TopicService = (*topicService)(nil)
