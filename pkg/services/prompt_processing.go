package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/llm"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/repositories"
)

// PromptProcessingService runs a prompt against the providers and stores
// one result per provider.
type PromptProcessingService interface {
	// Process moves the prompt from pending (or failed, for a retry) to
	// processing, dispatches it and records every provider outcome. It returns
	// the number of providers processed. A prompt in any other state yields
	// ErrInvalidTransition without side effects.
	Process(ctx context.Context, promptID uuid.UUID) (int, error)
	// ListResults returns the prompt's provider results ordered by model.
	ListResults(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error)
}

type promptProcessingService struct {
	promptRepo      repositories.PromptRepository
	topicRepo       repositories.TopicRepository
	modelResultRepo repositories.ModelResultRepository
	gateway         llm.Dispatcher
	logger          *zap.Logger
}

// NewPromptProcessingService creates a new prompt processing service.
func NewPromptProcessingService(
	promptRepo repositories.PromptRepository,
	topicRepo repositories.TopicRepository,
	modelResultRepo repositories.ModelResultRepository,
	gateway llm.Dispatcher,
	logger *zap.Logger,
) PromptProcessingService {
	return &promptProcessingService{
		promptRepo:      promptRepo,
		topicRepo:       topicRepo,
		modelResultRepo: modelResultRepo,
		gateway:         gateway,
		logger:          logger.Named("prompt-processing"),
	}
}

func (s *promptProcessingService) Process(ctx context.Context, promptID uuid.UUID) (int, error) {
	// A caller that hangs up does not stop the job; providers.call_timeout
	// bounds each provider call.
	ctx = context.WithoutCancel(ctx)

	prompt, err := s.getPrompt(ctx, promptID)
	if err != nil {
		return 0, err
	}

	if err := s.promptRepo.TransitionStatus(ctx, promptID, models.ProcessableStatuses, models.PromptStatusProcessing); err != nil {
		return 0, err
	}

	s.logger.Info("Processing prompt",
		zap.String("prompt_id", promptID.String()),
		zap.String("previous_status", string(prompt.Status)),
		zap.Strings("providers", s.gateway.Providers()))

	count, err := s.dispatchAndStore(ctx, prompt)
	if err != nil {
		s.markFailed(ctx, promptID, err)
		return 0, err
	}

	err = s.promptRepo.TransitionStatus(ctx, promptID,
		[]models.PromptStatus{models.PromptStatusProcessing}, models.PromptStatusCompleted)
	if err != nil {
		s.markFailed(ctx, promptID, err)
		return 0, fmt.Errorf("failed to complete prompt: %w", err)
	}

	s.logger.Info("Prompt processed",
		zap.String("prompt_id", promptID.String()),
		zap.Int("providers", count))
	return count, nil
}

func (s *promptProcessingService) dispatchAndStore(ctx context.Context, prompt *models.Prompt) (int, error) {
	topic, err := s.topicRepo.GetByID(ctx, prompt.UserID, prompt.TopicID)
	if err != nil {
		return 0, fmt.Errorf("failed to load topic: %w", err)
	}

	outcomes := s.gateway.Dispatch(ctx, prompt.Content, topic.Name)
	if len(outcomes) == 0 {
		s.logger.Warn("No search provider is configured, prompt has no results",
			zap.String("prompt_id", prompt.ID.String()))
	}

	for _, outcome := range outcomes {
		if err := s.modelResultRepo.Upsert(ctx, modelResultFromOutcome(prompt.ID, outcome)); err != nil {
			return 0, fmt.Errorf("failed to store %s result: %w", outcome.Provider, err)
		}
	}
	return len(outcomes), nil
}

func (s *promptProcessingService) ListResults(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error) {
	if _, err := s.getPrompt(ctx, promptID); err != nil {
		return nil, err
	}
	return s.modelResultRepo.ListByPrompt(ctx, promptID)
}

// getPrompt loads the prompt, hiding prompts owned by someone other than the
// authenticated caller. Calls without claims (CLI, jobs) see every prompt.
func (s *promptProcessingService) getPrompt(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error) {
	prompt, err := s.promptRepo.GetByID(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if userID, ok := auth.GetUserIDFromContext(ctx); ok && prompt.UserID != userID {
		return nil, fmt.Errorf("prompt %s: %w", promptID, apperrors.ErrNotFound)
	}
	return prompt, nil
}

func (s *promptProcessingService) markFailed(ctx context.Context, promptID uuid.UUID, cause error) {
	err := s.promptRepo.TransitionStatus(ctx, promptID,
		[]models.PromptStatus{models.PromptStatusProcessing}, models.PromptStatusFailed)
	if err != nil {
		s.logger.Error("Failed to mark prompt as failed",
			zap.String("prompt_id", promptID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.logger.Warn("Prompt processing failed",
		zap.String("prompt_id", promptID.String()),
		zap.Error(cause))
}

func modelResultFromOutcome(promptID uuid.UUID, outcome llm.ProviderOutcome) *models.ModelResult {
	result := &models.ModelResult{
		PromptID:         promptID,
		Model:            outcome.Provider,
		Response:         outcome.Response,
		ResponseMetadata: outcome.Metadata,
		Results:          outcome.Results,
		Status:           models.ModelResultCompleted,
	}
	if outcome.Failed() {
		msg := outcome.Error
		result.Status = models.ModelResultFailed
		result.ErrorMessage = &msg
	}
	return result
}

var _ PromptProcessingService = (*promptProcessingService)(nil)
