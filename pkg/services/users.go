package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/repositories"
)

// UserService manages account records keyed by the JWT subject.
type UserService interface {
	// Provision creates the user on first authenticated request and keeps
	// email and name in step with the identity provider.
	Provision(ctx context.Context, userID uuid.UUID, email, name string) (*models.User, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger.Named("users"),
	}
}

func (s *userService) Provision(ctx context.Context, userID uuid.UUID, email, name string) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	user, err := s.userRepo.Ensure(ctx, &models.User{ID: userID, Email: email, Name: name})
	if err != nil {
		s.logger.Error("Failed to provision user",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

var _ UserService = (*userService)(nil)
