package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Ensure creates the user on first sight and refreshes email/name afterwards.
	Ensure(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	// SetStripeCustomerID assigns the customer id only if none is set yet and
	// returns the id stored afterwards.
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error)
	// ApplySubscription writes a subscription snapshot onto the user owning customerID.
	ApplySubscription(ctx context.Context, customerID string, state *models.SubscriptionState) error
	// ClearSubscription drops the subscription and returns the user to the free plan.
	ClearSubscription(ctx context.Context, customerID string) error
	SetPlanStatus(ctx context.Context, customerID, status string) error
}

type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

const userColumns = `id, email, name, plan, plan_status, stripe_customer_id, stripe_subscription_id,
	stripe_price_id, stripe_current_period_end, created_at, updated_at`

func (r *userRepository) Ensure(ctx context.Context, user *models.User) (*models.User, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
		    name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
		    updated_at = CASE
		        WHEN (EXCLUDED.email <> '' AND EXCLUDED.email <> users.email)
		          OR (EXCLUDED.name <> '' AND EXCLUDED.name <> users.name)
		        THEN now() ELSE users.updated_at END
		RETURNING ` + userColumns

	row := scope.Conn.QueryRow(ctx, query, user.ID, user.Email, user.Name)
	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return saved, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by customer: %w", err)
	}
	return user, nil
}

func (r *userRepository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) (string, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return "", fmt.Errorf("no user scope in context")
	}

	// COALESCE keeps an id assigned by a concurrent checkout.
	query := `
		UPDATE users
		SET stripe_customer_id = COALESCE(stripe_customer_id, $2),
		    updated_at = now()
		WHERE id = $1
		RETURNING stripe_customer_id`

	var stored string
	err := scope.Conn.QueryRow(ctx, query, userID, customerID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", userID, apperrors.ErrNotFound)
		}
		return "", fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	return stored, nil
}

func (r *userRepository) ApplySubscription(ctx context.Context, customerID string, state *models.SubscriptionState) error {
	query := `
		UPDATE users
		SET stripe_subscription_id = $2,
		    stripe_price_id = $3,
		    stripe_current_period_end = $4,
		    plan = $5,
		    plan_status = $6,
		    updated_at = now()
		WHERE stripe_customer_id = $1`

	return r.updateByCustomer(ctx, "apply subscription", query, customerID,
		state.SubscriptionID, state.PriceID, state.CurrentPeriodEnd, state.Plan, state.Status)
}

func (r *userRepository) ClearSubscription(ctx context.Context, customerID string) error {
	query := `
		UPDATE users
		SET stripe_subscription_id = NULL,
		    stripe_price_id = NULL,
		    stripe_current_period_end = NULL,
		    plan = 'free',
		    plan_status = $2,
		    updated_at = now()
		WHERE stripe_customer_id = $1`

	return r.updateByCustomer(ctx, "clear subscription", query, customerID, models.PlanStatusCanceled)
}

func (r *userRepository) SetPlanStatus(ctx context.Context, customerID, status string) error {
	query := `UPDATE users SET plan_status = $2, updated_at = now() WHERE stripe_customer_id = $1`
	return r.updateByCustomer(ctx, "set plan status", query, customerID, status)
}

// updateByCustomer runs a customer-keyed update and reports ErrNotFound when no user matched.
func (r *userRepository) updateByCustomer(ctx context.Context, op, query, customerID string, args ...any) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, query, append([]any{customerID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: customer %s: %w", op, customerID, apperrors.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Plan,
		&u.PlanStatus,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.StripePriceID,
		&u.StripeCurrentPeriodEnd,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ UserRepository = (*userRepository)(nil)
