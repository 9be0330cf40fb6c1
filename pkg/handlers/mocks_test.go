package handlers

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/services"
)

// withUser attaches claims for userID to the request, as RequireAuth would.
func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		Email:            "owner@example.com",
		Name:             "Owner",
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims, "token"))
}

// passthrough stands in for the auth and scoping chain.
func passthrough(next http.HandlerFunc) http.HandlerFunc { return next }

type mockProcessingService struct {
	count     int
	err       error
	results   []*models.ModelResult
	listErr   error
	processed []uuid.UUID
}

func (m *mockProcessingService) Process(ctx context.Context, promptID uuid.UUID) (int, error) {
	m.processed = append(m.processed, promptID)
	return m.count, m.err
}

func (m *mockProcessingService) ListResults(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error) {
	return m.results, m.listErr
}

type mockPromptService struct {
	created   *models.Prompt
	createErr error
	prompts   []*models.Prompt
	listErr   error
	lastArgs  []string
}

func (m *mockPromptService) CreatePrompt(ctx context.Context, userID, topicID uuid.UUID, content, geoRegion string) (*models.Prompt, error) {
	m.lastArgs = []string{userID.String(), topicID.String(), content, geoRegion}
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *mockPromptService) ListPrompts(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error) {
	return m.prompts, m.listErr
}

type mockTopicService struct {
	topic     *models.Topic
	createErr error
	topics    []*models.Topic
	listErr   error
	deleteErr error
	deleted   []uuid.UUID
	rawURL    string
}

func (m *mockTopicService) CreateTopicFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*models.Topic, error) {
	m.rawURL = rawURL
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.topic, nil
}

func (m *mockTopicService) ListTopics(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error) {
	return m.topics, m.listErr
}

func (m *mockTopicService) DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error {
	m.deleted = append(m.deleted, topicID)
	return m.deleteErr
}

type mockMentionService struct {
	summary    *services.AnalysisSummary
	analyzeErr error
	mentions   []*models.Mention
	stats      *models.MentionStats
	err        error
}

func (m *mockMentionService) AnalyzeMentions(ctx context.Context) (*services.AnalysisSummary, error) {
	return m.summary, m.analyzeErr
}

func (m *mockMentionService) ListMentions(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error) {
	return m.mentions, m.err
}

func (m *mockMentionService) Stats(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error) {
	return m.stats, m.err
}

type mockSuggestionService struct {
	prompts []services.PromptSuggestion
	topics  []services.TopicSuggestion
	context string
}

func (m *mockSuggestionService) PromptSuggestions(ctx context.Context, topicName, description string) []services.PromptSuggestion {
	return m.prompts
}

func (m *mockSuggestionService) TopicSuggestions(ctx context.Context, userContext string) []services.TopicSuggestion {
	m.context = userContext
	return m.topics
}

type mockCheckoutService struct {
	session  *services.CheckoutSession
	err      error
	planType string
}

func (m *mockCheckoutService) CreateCheckout(ctx context.Context, userID uuid.UUID, planType string) (*services.CheckoutSession, error) {
	m.planType = planType
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

type mockPlanLimitService struct {
	plans    []config.Plan
	usage    *services.PlanUsage
	usageErr error
}

func (m *mockPlanLimitService) Plans() []config.Plan { return m.plans }

func (m *mockPlanLimitService) PlanForPrice(priceID string) string { return config.DefaultPlan }

func (m *mockPlanLimitService) PlanForUser(ctx context.Context, userID uuid.UUID) (config.Plan, error) {
	return config.Plan{Name: config.DefaultPlan}, nil
}

func (m *mockPlanLimitService) CheckTopicLimit(ctx context.Context, userID uuid.UUID) error { return nil }

func (m *mockPlanLimitService) CheckPromptLimit(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (m *mockPlanLimitService) Usage(ctx context.Context, userID uuid.UUID) (*services.PlanUsage, error) {
	return m.usage, m.usageErr
}

type mockReconciler struct {
	err       error
	payload   []byte
	signature string
}

func (m *mockReconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	m.payload = payload
	m.signature = signature
	return m.err
}

type mockUserService struct {
	provisioned []uuid.UUID
	err         error
}

func (m *mockUserService) Provision(ctx context.Context, userID uuid.UUID, email, name string) (*models.User, error) {
	m.provisioned = append(m.provisioned, userID)
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: userID, Email: email, Name: name, Plan: config.DefaultPlan}, nil
}

func (m *mockUserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

var (
	_ services.PromptProcessingService = (*mockProcessingService)(nil)
	_ services.PromptService           = (*mockPromptService)(nil)
	_ services.TopicService            = (*mockTopicService)(nil)
	_ services.MentionAnalysisService  = (*mockMentionService)(nil)
	_ services.SuggestionService       = (*mockSuggestionService)(nil)
	_ services.CheckoutService         = (*mockCheckoutService)(nil)
	_ services.PlanLimitService        = (*mockPlanLimitService)(nil)
	_ services.SubscriptionReconciler  = (*mockReconciler)(nil)
	_ services.UserService             = (*mockUserService)(nil)
)
