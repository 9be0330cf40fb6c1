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

// PromptService creates and lists the queries tracked for a topic.
type PromptService interface {
	// CreatePrompt adds a pending prompt to one of the user's topics, subject
	// to the plan's daily prompt limit.
	CreatePrompt(ctx context.Context, userID, topicID uuid.UUID, content, geoRegion string) (*models.Prompt, error)
	ListPrompts(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error)
}

type promptService struct {
	promptRepo repositories.PromptRepository
	topicRepo  repositories.TopicRepository
	planLimits PlanLimitService
	logger     *zap.Logger
}

// NewPromptService creates a new prompt service.
func NewPromptService(
	promptRepo repositories.PromptRepository,
	topicRepo repositories.TopicRepository,
	planLimits PlanLimitService,
	logger *zap.Logger,
) PromptService {
	return &promptService{
		promptRepo: promptRepo,
		topicRepo:  topicRepo,
		planLimits: planLimits,
		logger:     logger.Named("prompts"),
	}
}

func (s *promptService) CreatePrompt(ctx context.Context, userID, topicID uuid.UUID, content, geoRegion string) (*models.Prompt, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "Prompt content is required")
	}
	geoRegion = strings.TrimSpace(geoRegion)
	if geoRegion == "" {
		geoRegion = models.DefaultGeoRegion
	}

	if _, err := s.topicRepo.GetByID(ctx, userID, topicID); err != nil {
		return nil, err
	}
	if err := s.planLimits.CheckPromptLimit(ctx, userID); err != nil {
		return nil, err
	}

	prompt := &models.Prompt{
		TopicID:   topicID,
		UserID:    userID,
		Content:   content,
		GeoRegion: geoRegion,
		Status:    models.PromptStatusPending,
	}
	if err := s.promptRepo.Create(ctx, prompt); err != nil {
		return nil, err
	}

	s.logger.Info("Prompt created",
		zap.String("user_id", userID.String()),
		zap.String("topic_id", topicID.String()),
		zap.String("prompt_id", prompt.ID.String()))
	return prompt, nil
}

func (s *promptService) ListPrompts(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error) {
	if _, err := s.topicRepo.GetByID(ctx, userID, topicID); err != nil {
		return nil, err
	}
	return s.promptRepo.ListByTopic(ctx, userID, topicID)
}

var _ PromptService = (*promptService)(nil)
