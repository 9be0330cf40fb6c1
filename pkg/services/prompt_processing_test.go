package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/llm"
	"github.com/lookout-hq/lookout/pkg/models"
)

type processingFixture struct {
	user       *models.User
	topic      *models.Topic
	prompt     *models.Prompt
	topics     *mockTopicRepository
	prompts    *mockPromptRepository
	results    *mockModelResultRepository
	dispatcher *llm.MockDispatcher
	service    PromptProcessingService
}

func newProcessingFixture(t *testing.T, status models.PromptStatus) *processingFixture {
	t.Helper()
	user := &models.User{ID: uuid.New(), Plan: "free"}
	topic := &models.Topic{ID: uuid.New(), UserID: user.ID, Name: "acme"}
	prompt := &models.Prompt{ID: uuid.New(), UserID: user.ID, TopicID: topic.ID, Content: "best crm", Status: status}

	topics := newMockTopicRepository(topic)
	prompts := newMockPromptRepository(prompt)
	results := &mockModelResultRepository{}
	dispatcher := &llm.MockDispatcher{Names: []string{"openai", "claude", "google"}}

	return &processingFixture{
		user:       user,
		topic:      topic,
		prompt:     prompt,
		topics:     topics,
		prompts:    prompts,
		results:    results,
		dispatcher: dispatcher,
		service:    NewPromptProcessingService(prompts, topics, results, dispatcher, zap.NewNop()),
	}
}

func withUser(ctx context.Context, userID uuid.UUID) context.Context {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}}
	return auth.WithClaims(ctx, claims, "token")
}

func TestPromptProcessing_Process(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)
	f.dispatcher.Outcomes = map[string]llm.ProviderOutcome{
		"claude": {Error: "rate limited"},
	}

	n, err := f.service.Process(withUser(context.Background(), f.user.ID), f.prompt.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, n, "every provider counts, failed ones included")
	assert.Equal(t, models.PromptStatusCompleted, f.prompts.status(f.prompt.ID))
	assert.Equal(t, []models.PromptStatus{models.PromptStatusProcessing, models.PromptStatusCompleted}, f.prompts.transitions)

	require.Len(t, f.dispatcher.Calls, 1)
	assert.Equal(t, "best crm", f.dispatcher.Calls[0].Query)
	assert.Equal(t, "acme", f.dispatcher.Calls[0].TopicName)

	byModel := map[string]*models.ModelResult{}
	for _, r := range f.results.upserted {
		byModel[r.Model] = r
	}
	require.Len(t, byModel, 3)
	assert.Equal(t, models.ModelResultCompleted, byModel["openai"].Status)
	assert.Equal(t, "openai answer", byModel["openai"].Response)
	assert.Equal(t, models.ModelResultFailed, byModel["claude"].Status)
	require.NotNil(t, byModel["claude"].ErrorMessage)
	assert.Equal(t, "rate limited", *byModel["claude"].ErrorMessage)
}

func TestPromptProcessing_EveryProviderRegardlessOfPlan(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)
	require.Equal(t, "free", f.user.Plan)

	n, err := f.service.Process(withUser(context.Background(), f.user.ID), f.prompt.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	var got []string
	for _, r := range f.results.upserted {
		got = append(got, r.Model)
	}
	assert.ElementsMatch(t, []string{"openai", "claude", "google"}, got)
}

func TestPromptProcessing_CallerCancellationDoesNotStopJob(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)

	started := make(chan struct{}, 3)
	release := make(chan struct{})
	var providers []llm.Provider
	for _, name := range []string{llm.ProviderOpenAI, llm.ProviderClaude, llm.ProviderGoogle} {
		p := llm.NewMockProvider(name)
		p.GenerateFunc = func(ctx context.Context, req llm.Request) (*llm.Generation, error) {
			started <- struct{}{}
			select {
			case <-release:
				return &llm.Generation{Text: name + " answer", FinishReason: "stop"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		providers = append(providers, p)
	}
	gateway := llm.NewGateway(providers, llm.GatewayConfig{}, nil, zap.NewNop())
	service := NewPromptProcessingService(f.prompts, f.topics, f.results, gateway, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for range 3 {
			<-started
		}
		cancel()
		close(release)
	}()

	n, err := service.Process(ctx, f.prompt.ID)
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.Equal(t, 3, n)
	assert.Equal(t, models.PromptStatusCompleted, f.prompts.status(f.prompt.ID))
	require.Len(t, f.results.upserted, 3)
	for _, r := range f.results.upserted {
		assert.Equal(t, models.ModelResultCompleted, r.Status, r.Model)
		assert.Equal(t, r.Model+" answer", r.Response)
	}
}

func TestPromptProcessing_RetriesFailedPrompt(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusFailed)

	_, err := f.service.Process(context.Background(), f.prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PromptStatusCompleted, f.prompts.status(f.prompt.ID))
}

func TestPromptProcessing_RejectsNonProcessableStates(t *testing.T) {
	for _, status := range []models.PromptStatus{models.PromptStatusProcessing, models.PromptStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			f := newProcessingFixture(t, status)

			_, err := f.service.Process(context.Background(), f.prompt.ID)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			assert.Empty(t, f.dispatcher.Calls)
			assert.Empty(t, f.results.upserted)
			assert.Equal(t, status, f.prompts.status(f.prompt.ID))
		})
	}
}

func TestPromptProcessing_NotFound(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)

	_, err := f.service.Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPromptProcessing_HidesOtherUsersPrompts(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)

	_, err := f.service.Process(withUser(context.Background(), uuid.New()), f.prompt.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, models.PromptStatusPending, f.prompts.status(f.prompt.ID))

	_, err = f.service.ListResults(withUser(context.Background(), uuid.New()), f.prompt.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPromptProcessing_StoreFailureMarksFailed(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)
	f.results.upsertErr = errors.New("connection reset by peer")

	_, err := f.service.Process(context.Background(), f.prompt.ID)
	require.Error(t, err)
	assert.Equal(t, models.PromptStatusFailed, f.prompts.status(f.prompt.ID))
}

func TestPromptProcessing_ConcurrentCallsAdmitOne(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Process(context.Background(), f.prompt.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.dispatcher.Calls, 1)
}

func TestPromptProcessing_ListResults(t *testing.T) {
	f := newProcessingFixture(t, models.PromptStatusPending)
	ctx := withUser(context.Background(), f.user.ID)

	_, err := f.service.Process(ctx, f.prompt.ID)
	require.NoError(t, err)

	results, err := f.service.ListResults(ctx, f.prompt.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
