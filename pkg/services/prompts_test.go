package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/models"
)

func newPromptFixture(t *testing.T, plan string) (*models.User, *models.Topic, *mockPromptRepository, PromptService) {
	t.Helper()
	user := &models.User{ID: uuid.New(), Plan: plan}
	topic := &models.Topic{ID: uuid.New(), UserID: user.ID, Name: "acme"}
	users := newMockUserRepository(user)
	topics := newMockTopicRepository(topic)
	prompts := newMockPromptRepository()
	planLimits := NewPlanLimitService(newTestCatalog(t), users, topics, prompts, zap.NewNop())
	return user, topic, prompts, NewPromptService(prompts, topics, planLimits, zap.NewNop())
}

func TestPrompts_Create(t *testing.T) {
	user, topic, _, svc := newPromptFixture(t, "basic")

	prompt, err := svc.CreatePrompt(context.Background(), user.ID, topic.ID, "  best crm for startups \n", "")
	require.NoError(t, err)

	assert.Equal(t, "best crm for startups", prompt.Content)
	assert.Equal(t, models.DefaultGeoRegion, prompt.GeoRegion)
	assert.Equal(t, models.PromptStatusPending, prompt.Status)
	assert.Equal(t, topic.ID, prompt.TopicID)
	assert.Equal(t, user.ID, prompt.UserID)
}

func TestPrompts_CreateKeepsRegion(t *testing.T) {
	user, topic, _, svc := newPromptFixture(t, "basic")

	prompt, err := svc.CreatePrompt(context.Background(), user.ID, topic.ID, "best crm", "us")
	require.NoError(t, err)
	assert.Equal(t, "us", prompt.GeoRegion)
}

func TestPrompts_CreateValidation(t *testing.T) {
	user, topic, prompts, svc := newPromptFixture(t, "basic")

	_, err := svc.CreatePrompt(context.Background(), user.ID, topic.ID, "   ", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreatePrompt(context.Background(), user.ID, uuid.New(), "best crm", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.CreatePrompt(context.Background(), uuid.New(), topic.ID, "best crm", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "topic of another user")

	assert.Empty(t, prompts.prompts)
}

func TestPrompts_CreateEnforcesDailyLimit(t *testing.T) {
	user, topic, prompts, svc := newPromptFixture(t, "basic")
	prompts.todayCount = 25

	_, err := svc.CreatePrompt(context.Background(), user.ID, topic.ID, "best crm", "")
	assert.ErrorIs(t, err, apperrors.ErrLimitReached)

	user, topic, _, svc = newPromptFixture(t, "free")
	_, err = svc.CreatePrompt(context.Background(), user.ID, topic.ID, "best crm", "")
	assert.ErrorIs(t, err, apperrors.ErrLimitReached)
}

func TestPrompts_List(t *testing.T) {
	user, topic, _, svc := newPromptFixture(t, "pro")
	_, err := svc.CreatePrompt(context.Background(), user.ID, topic.ID, "one", "")
	require.NoError(t, err)
	_, err = svc.CreatePrompt(context.Background(), user.ID, topic.ID, "two", "")
	require.NoError(t, err)

	list, err := svc.ListPrompts(context.Background(), user.ID, topic.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListPrompts(context.Background(), uuid.New(), topic.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
