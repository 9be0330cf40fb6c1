package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
)

func TestUserService_Provision(t *testing.T) {
	repo := newMockUserRepository()
	svc := NewUserService(repo, zap.NewNop())
	id := uuid.New()

	user, err := svc.Provision(context.Background(), id, "a@example.com", "Ada")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "free", user.Plan)

	user, err = svc.Provision(context.Background(), id, "ada@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name, "empty claims never erase stored values")
	assert.Equal(t, 2, repo.ensureCalls)
}

func TestUserService_ProvisionRequiresID(t *testing.T) {
	svc := NewUserService(newMockUserRepository(), zap.NewNop())

	_, err := svc.Provision(context.Background(), uuid.Nil, "a@example.com", "")
	assert.Error(t, err)
}

func TestUserService_Get(t *testing.T) {
	svc := NewUserService(newMockUserRepository(), zap.NewNop())

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
