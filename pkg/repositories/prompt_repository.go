package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/models"
)

// PromptRepository defines the interface for prompt data access.
type PromptRepository interface {
	Create(ctx context.Context, prompt *models.Prompt) error
	// GetByID returns the prompt visible to the connection's scope.
	GetByID(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error)
	ListByTopic(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Prompt, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	// TransitionStatus moves the prompt to `to` only if its current status is
	// one of `from`. It returns ErrNotFound if the prompt does not exist and
	// ErrInvalidTransition if it exists in another state. Moving to completed
	// stamps completed_at; any other target clears it.
	TransitionStatus(ctx context.Context, promptID uuid.UUID, from []models.PromptStatus, to models.PromptStatus) error
}

type promptRepository struct{}

// NewPromptRepository creates a new prompt repository.
func NewPromptRepository() PromptRepository {
	return &promptRepository{}
}

const promptColumns = `id, topic_id, user_id, content, geo_region, status, visibility_score,
	completed_at, created_at, updated_at`

func (r *promptRepository) Create(ctx context.Context, prompt *models.Prompt) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	if prompt.Status == "" {
		prompt.Status = models.PromptStatusPending
	}
	if prompt.GeoRegion == "" {
		prompt.GeoRegion = models.DefaultGeoRegion
	}

	query := `
		INSERT INTO prompts (topic_id, user_id, content, geo_region, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := scope.Conn.QueryRow(ctx, query,
		prompt.TopicID,
		prompt.UserID,
		prompt.Content,
		prompt.GeoRegion,
		prompt.Status,
	).Scan(&prompt.ID, &prompt.CreatedAt, &prompt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}
	return nil
}

func (r *promptRepository) GetByID(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	prompt, err := scanPrompt(scope.Conn.QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = $1`, promptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("prompt %s: %w", promptID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return prompt, nil
}

func (r *promptRepository) ListByTopic(ctx context.Context, userID, topicID uuid.UUID) ([]*models.Prompt, error) {
	query := `SELECT ` + promptColumns + `
		FROM prompts
		WHERE user_id = $1 AND topic_id = $2
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, userID, topicID)
}

func (r *promptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Prompt, error) {
	query := `SELECT ` + promptColumns + `
		FROM prompts
		WHERE user_id = $1
		ORDER BY created_at DESC, id`
	return r.list(ctx, query, userID)
}

func (r *promptRepository) list(ctx context.Context, query string, args ...any) ([]*models.Prompt, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]*models.Prompt, 0)
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompts: %w", err)
	}
	return prompts, nil
}

func (r *promptRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no user scope in context")
	}

	var count int
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM prompts WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prompts: %w", err)
	}
	return count, nil
}

func (r *promptRepository) TransitionStatus(ctx context.Context, promptID uuid.UUID, from []models.PromptStatus, to models.PromptStatus) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	query := `
		UPDATE prompts
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE id = $1 AND status = ANY($2)`

	tag, err := scope.Conn.Exec(ctx, query, promptID, fromValues, string(to))
	if err != nil {
		return fmt.Errorf("failed to update prompt status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current models.PromptStatus
	err = scope.Conn.QueryRow(ctx, `SELECT status FROM prompts WHERE id = $1`, promptID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("prompt %s: %w", promptID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to read prompt status: %w", err)
	}
	return fmt.Errorf("prompt %s is %s, cannot move to %s: %w", promptID, current, to, apperrors.ErrInvalidTransition)
}

func scanPrompt(row pgx.Row) (*models.Prompt, error) {
	var p models.Prompt
	err := row.Scan(
		&p.ID,
		&p.TopicID,
		&p.UserID,
		&p.Content,
		&p.GeoRegion,
		&p.Status,
		&p.VisibilityScore,
		&p.CompletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ PromptRepository = (*promptRepository)(nil)
