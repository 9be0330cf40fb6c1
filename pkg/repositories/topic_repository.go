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

// TopicRepository defines the interface for topic data access.
// Every method is restricted to the given owner.
type TopicRepository interface {
	Create(ctx context.Context, topic *models.Topic) error
	GetByID(ctx context.Context, userID, topicID uuid.UUID) (*models.Topic, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error)
	Delete(ctx context.Context, userID, topicID uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type topicRepository struct{}

// NewTopicRepository creates a new topic repository.
func NewTopicRepository() TopicRepository {
	return &topicRepository{}
}

const topicColumns = `id, user_id, name, description, logo, is_active, created_at`

func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	query := `
		INSERT INTO topics (user_id, name, description, logo, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		topic.UserID,
		topic.Name,
		topic.Description,
		topic.Logo,
		topic.IsActive,
	).Scan(&topic.ID, &topic.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

func (r *topicRepository) GetByID(ctx context.Context, userID, topicID uuid.UUID) (*models.Topic, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `SELECT ` + topicColumns + ` FROM topics WHERE id = $1 AND user_id = $2`
	topic, err := scanTopic(scope.Conn.QueryRow(ctx, query, topicID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("topic %s: %w", topicID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return topic, nil
}

func (r *topicRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Topic, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `SELECT ` + topicColumns + ` FROM topics WHERE user_id = $1 ORDER BY created_at DESC, id`
	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	topics := make([]*models.Topic, 0)
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return topics, nil
}

func (r *topicRepository) Delete(ctx context.Context, userID, topicID uuid.UUID) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM topics WHERE id = $1 AND user_id = $2`, topicID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topic %s: %w", topicID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *topicRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no user scope in context")
	}

	var count int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM topics WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count topics: %w", err)
	}
	return count, nil
}

func scanTopic(row pgx.Row) (*models.Topic, error) {
	var t models.Topic
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Logo, &t.IsActive, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ TopicRepository = (*topicRepository)(nil)
