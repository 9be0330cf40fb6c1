package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/stripe"
)

// mockUserRepository keeps users in memory, keyed by id.
type mockUserRepository struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*models.User
	getErr error
	setErr error

	ensureCalls int
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) Ensure(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	if existing, ok := m.users[user.ID]; ok {
		if user.Email != "" {
			existing.Email = user.Email
		}
		if user.Name != "" {
			existing.Name = user.Name
		}
		return existing, nil
	}
	u := *user
	if u.Plan == "" {
		u.Plan = "free"
	}
	m.users[u.ID] = &u
	return &u, nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byCustomer(customerID)
	if u == nil {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return "", m.setErr
	}
	u, ok := m.users[userID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	if u.StripeCustomerID == nil {
		u.StripeCustomerID = &customerID
	}
	return *u.StripeCustomerID, nil
}

func (m *mockUserRepository) ApplySubscription(ctx context.Context, customerID string, state *models.SubscriptionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	u := m.byCustomer(customerID)
	if u == nil {
		return fmt.Errorf("customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	subID, priceID, periodEnd := state.SubscriptionID, state.PriceID, state.CurrentPeriodEnd
	u.StripeSubscriptionID = &subID
	u.StripePriceID = &priceID
	u.StripeCurrentPeriodEnd = &periodEnd
	u.Plan = state.Plan
	u.PlanStatus = state.Status
	return nil
}

func (m *mockUserRepository) ClearSubscription(ctx context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byCustomer(customerID)
	if u == nil {
		return apperrors.ErrNotFound
	}
	u.StripeSubscriptionID = nil
	u.StripePriceID = nil
	u.StripeCurrentPeriodEnd = nil
	u.Plan = "free"
	u.PlanStatus = models.PlanStatusCanceled
	return nil
}

func (m *mockUserRepository) SetPlanStatus(ctx context.Context, customerID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byCustomer(customerID)
	if u == nil {
		return apperrors.ErrNotFound
	}
	u.PlanStatus = status
	return nil
}

func (m *mockUserRepository) byCustomer(customerID string) *models.User {
	for _, u := range m.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u
		}
	}
	return nil
}

// mockTopicRepository keeps topics in memory.
type mockTopicRepository struct {
	mu        sync.Mutex
	topics    map[uuid.UUID]*models.Topic
	createErr error
}

func newMockTopicRepository(topics ...*models.Topic) *mockTopicRepository {
	m := &mockTopicRepository{topics: make(map[uuid.UUID]*models.Topic)}
	for _, t := range topics {
		m.topics[t.ID] = t
	}
	return m
}

func (m *mockTopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	topic.ID = uuid.New()
	topic.CreatedAt = time.Now()
	m.topics[topic.ID] = topic
	return nil
}

func (m *mockTopicRepository) GetByID(ctx context.Context, userID, topicID uuid.UUID) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[topicID]
	if !ok || t.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

func (m *mockTopicRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Topic
	for _, t := range m.topics {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockTopicRepository) Delete(ctx context.Context, userID, topicID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[topicID]
	if !ok || t.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(m.topics, topicID)
	return nil
}

func (m *mockTopicRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	topics, _ := m.ListByUser(ctx, userID)
	return len(topics), nil
}

// mockPromptRepository keeps prompts in memory and applies transitions
// the way the database does.
type mockPromptRepository struct {
	mu          sync.Mutex
	prompts     map[uuid.UUID]*models.Prompt
	transitions []models.PromptStatus
	todayCount  int
	since       time.Time
}

func newMockPromptRepository(prompts ...*models.Prompt) *mockPromptRepository {
	m := &mockPromptRepository{prompts: make(map[uuid.UUID]*models.Prompt)}
	for _, p := range prompts {
		m.prompts[p.ID] = p
	}
	return m
}

func (m *mockPromptRepository) Create(ctx context.Context, prompt *models.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prompt.ID = uuid.New()
	prompt.CreatedAt = time.Now()
	m.prompts[prompt.ID] = prompt
	return nil
}

func (m *mockPromptRepository) GetByID(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[promptID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPromptRepository) ListByTopic(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Prompt
	for _, p := range m.prompts {
		if p.UserID == userID && p.TopicID == topicID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPromptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Prompt
	for _, p := range m.prompts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPromptRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	return m.todayCount, nil
}

func (m *mockPromptRepository) TransitionStatus(ctx context.Context, promptID uuid.UUID, from []models.PromptStatus, to models.PromptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[promptID]
	if !ok {
		return apperrors.ErrNotFound
	}
	for _, f := range from {
		if p.Status == f {
			p.Status = to
			m.transitions = append(m.transitions, to)
			return nil
		}
	}
	return fmt.Errorf("prompt %s is %s: %w", promptID, p.Status, apperrors.ErrInvalidTransition)
}

func (m *mockPromptRepository) status(id uuid.UUID) models.PromptStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[id].Status
}

// mockModelResultRepository records upserts.
type mockModelResultRepository struct {
	mu         sync.Mutex
	upserted   []*models.ModelResult
	analyzable []*models.AnalyzableResult
	upsertErr  error
	listErr    error
}

func (m *mockModelResultRepository) Upsert(ctx context.Context, result *models.ModelResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, result)
	return nil
}

func (m *mockModelResultRepository) ListByPrompt(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ModelResult
	for _, r := range m.upserted {
		if r.PromptID == promptID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockModelResultRepository) ListAnalyzable(ctx context.Context) ([]*models.AnalyzableResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.analyzable, nil
}

// mockMentionRepository records replacements per model result.
type mockMentionRepository struct {
	mu         sync.Mutex
	replaced   map[uuid.UUID][]*models.Mention
	replaceErr map[uuid.UUID]error
	pruned     int
	stats      *models.MentionStats
}

func newMockMentionRepository() *mockMentionRepository {
	return &mockMentionRepository{
		replaced:   make(map[uuid.UUID][]*models.Mention),
		replaceErr: make(map[uuid.UUID]error),
	}
}

func (m *mockMentionRepository) ReplaceForResult(ctx context.Context, modelResultID uuid.UUID, mentions []*models.Mention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.replaceErr[modelResultID]; err != nil {
		return err
	}
	m.replaced[modelResultID] = mentions
	return nil
}

func (m *mockMentionRepository) PruneOrphans(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 0, nil
}

func (m *mockMentionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Mention
	for _, ms := range m.replaced {
		out = append(out, ms...)
	}
	return out, nil
}

func (m *mockMentionRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error) {
	if m.stats == nil {
		return &models.MentionStats{}, nil
	}
	return m.stats, nil
}

// mockScopeProvider hands out the incoming context unchanged.
type mockScopeProvider struct {
	mu     sync.Mutex
	opened int
	closed int
	err    error
}

func (m *mockScopeProvider) WithSystemScope(ctx context.Context) (context.Context, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, nil, m.err
	}
	m.opened++
	return ctx, func() {
		m.mu.Lock()
		m.closed++
		m.mu.Unlock()
	}, nil
}

// mockStripeClient is a configurable StripeClient.
type mockStripeClient struct {
	mu            sync.Mutex
	customerID    string
	customerErr   error
	session       *stripe.CheckoutSession
	sessionErr    error
	subscriptions map[string]*stripe.Subscription
	subErr        error
	subPanic      string

	customerCalls  []stripe.CustomerParams
	customerKeys   []string
	sessionCalls   []stripe.CheckoutSessionParams
	sessionKeys    []string
	retrievedSubID []string
}

func (m *mockStripeClient) CreateCustomer(ctx context.Context, params stripe.CustomerParams, idempotencyKey string) (*stripe.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customerCalls = append(m.customerCalls, params)
	m.customerKeys = append(m.customerKeys, idempotencyKey)
	if m.customerErr != nil {
		return nil, m.customerErr
	}
	return &stripe.Customer{ID: m.customerID, Email: params.Email}, nil
}

func (m *mockStripeClient) CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams, idempotencyKey string) (*stripe.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCalls = append(m.sessionCalls, params)
	m.sessionKeys = append(m.sessionKeys, idempotencyKey)
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockStripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievedSubID = append(m.retrievedSubID, subscriptionID)
	if m.subPanic != "" {
		panic(m.subPanic)
	}
	if m.subErr != nil {
		return nil, m.subErr
	}
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, &stripe.APIError{StatusCode: 404, Message: "No such subscription"}
	}
	return sub, nil
}

// mockEventDeduper remembers claims in memory.
type mockEventDeduper struct {
	mu       sync.Mutex
	claimed  map[string]bool
	claimErr error
	released []string
}

func newMockEventDeduper() *mockEventDeduper {
	return &mockEventDeduper{claimed: make(map[string]bool)}
}

func (m *mockEventDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	if m.claimed[eventID] {
		return false, nil
	}
	m.claimed[eventID] = true
	return true, nil
}

func (m *mockEventDeduper) Release(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, eventID)
	m.released = append(m.released, eventID)
	return nil
}
