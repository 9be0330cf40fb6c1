package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/repositories"
)

// PlanUsage reports a user's plan together with current consumption.
type PlanUsage struct {
	Plan         config.Plan `json:"plan"`
	PlanStatus   string      `json:"planStatus"`
	PeriodEnd    *int64      `json:"currentPeriodEnd,omitempty"`
	Topics       int         `json:"topics"`
	PromptsToday int         `json:"promptsToday"`
}

// PlanLimitService resolves plans and enforces their limits.
type PlanLimitService interface {
	// Plans returns the catalog in display order.
	Plans() []config.Plan
	// PlanForPrice maps a Stripe price id to a plan name. Unknown ids map to the default plan.
	PlanForPrice(priceID string) string
	PlanForUser(ctx context.Context, userID uuid.UUID) (config.Plan, error)
	CheckTopicLimit(ctx context.Context, userID uuid.UUID) error
	CheckPromptLimit(ctx context.Context, userID uuid.UUID) error
	Usage(ctx context.Context, userID uuid.UUID) (*PlanUsage, error)
}

type planLimitService struct {
	catalog    *config.PlanCatalog
	userRepo   repositories.UserRepository
	topicRepo  repositories.TopicRepository
	promptRepo repositories.PromptRepository
	now        func() time.Time
	logger     *zap.Logger
}

// NewPlanLimitService creates a new plan limit service.
func NewPlanLimitService(
	catalog *config.PlanCatalog,
	userRepo repositories.UserRepository,
	topicRepo repositories.TopicRepository,
	promptRepo repositories.PromptRepository,
	logger *zap.Logger,
) PlanLimitService {
	return &planLimitService{
		catalog:    catalog,
		userRepo:   userRepo,
		topicRepo:  topicRepo,
		promptRepo: promptRepo,
		now:        time.Now,
		logger:     logger.Named("plan-limits"),
	}
}

func (s *planLimitService) Plans() []config.Plan {
	return s.catalog.All()
}

func (s *planLimitService) PlanForPrice(priceID string) string {
	if p, ok := s.catalog.ForPriceID(priceID); ok {
		return p.Name
	}
	s.logger.Warn("Unknown price id, falling back to default plan",
		zap.String("price_id", priceID),
		zap.String("plan", config.DefaultPlan))
	return config.DefaultPlan
}

func (s *planLimitService) PlanForUser(ctx context.Context, userID uuid.UUID) (config.Plan, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return config.Plan{}, err
	}
	if p, ok := s.catalog.Get(user.Plan); ok {
		return p, nil
	}
	s.logger.Warn("User has unknown plan, applying default limits",
		zap.String("user_id", userID.String()),
		zap.String("plan", user.Plan))
	return s.catalog.MustDefault(), nil
}

func (s *planLimitService) CheckTopicLimit(ctx context.Context, userID uuid.UUID) error {
	plan, err := s.PlanForUser(ctx, userID)
	if err != nil {
		return err
	}
	if plan.Limits.Topics == config.Unlimited {
		return nil
	}

	count, err := s.topicRepo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count >= plan.Limits.Topics {
		return apperrors.New(apperrors.ErrLimitReached,
			"You've reached your limit of %s. Upgrade your plan to track more topics.",
			quantity(plan.Limits.Topics, "topic"))
	}
	return nil
}

func (s *planLimitService) CheckPromptLimit(ctx context.Context, userID uuid.UUID) error {
	plan, err := s.PlanForUser(ctx, userID)
	if err != nil {
		return err
	}
	if plan.Limits.PromptsPerDay == config.Unlimited {
		return nil
	}

	count, err := s.promptRepo.CountCreatedSince(ctx, userID, s.startOfDay())
	if err != nil {
		return err
	}
	if count >= plan.Limits.PromptsPerDay {
		return apperrors.New(apperrors.ErrLimitReached,
			"You've reached your daily limit of %s. Upgrade your plan to create more prompts.",
			quantity(plan.Limits.PromptsPerDay, "prompt"))
	}
	return nil
}

func (s *planLimitService) Usage(ctx context.Context, userID uuid.UUID) (*PlanUsage, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, ok := s.catalog.Get(user.Plan)
	if !ok {
		plan = s.catalog.MustDefault()
	}

	topics, err := s.topicRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	prompts, err := s.promptRepo.CountCreatedSince(ctx, userID, s.startOfDay())
	if err != nil {
		return nil, err
	}

	return &PlanUsage{
		Plan:         plan,
		PlanStatus:   user.PlanStatus,
		PeriodEnd:    user.StripeCurrentPeriodEnd,
		Topics:       topics,
		PromptsToday: prompts,
	}, nil
}

// startOfDay is midnight UTC of the current day.
func (s *planLimitService) startOfDay() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// quantity renders "1 topic", "5 topics", "0 prompts".
func quantity(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

var _ PlanLimitService = (*planLimitService)(nil)
