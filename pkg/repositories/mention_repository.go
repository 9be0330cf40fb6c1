package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/models"
)

// MentionRepository defines the interface for mention data access.
type MentionRepository interface {
	// ReplaceForResult atomically swaps the mentions stored for one model result.
	ReplaceForResult(ctx context.Context, modelResultID uuid.UUID, mentions []*models.Mention) error
	// PruneOrphans deletes mentions whose model result is no longer analyzable.
	PruneOrphans(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error)
}

type mentionRepository struct{}

// NewMentionRepository creates a new mention repository.
func NewMentionRepository() MentionRepository {
	return &mentionRepository{}
}

func (r *mentionRepository) ReplaceForResult(ctx context.Context, modelResultID uuid.UUID, mentions []*models.Mention) (err error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM mentions WHERE model_result_id = $1`, modelResultID); err != nil {
		return fmt.Errorf("failed to delete mentions: %w", err)
	}

	if len(mentions) > 0 {
		batch := &pgx.Batch{}
		for _, m := range mentions {
			batch.Queue(`
				INSERT INTO mentions (prompt_id, topic_id, model_result_id, model, mention_type, position,
				                      context, sentiment, confidence, extracted_text, competitor_name)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING id, created_at`,
				m.PromptID, m.TopicID, modelResultID, m.Model, string(m.MentionType), m.Position,
				m.Context, string(m.Sentiment), m.Confidence, m.ExtractedText, m.CompetitorName,
			).QueryRow(func(row pgx.Row) error {
				m.ModelResultID = modelResultID
				return row.Scan(&m.ID, &m.CreatedAt)
			})
		}
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert mentions: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit mentions: %w", err)
	}
	return nil
}

func (r *mentionRepository) PruneOrphans(ctx context.Context) (int64, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no user scope in context")
	}

	query := `
		DELETE FROM mentions m
		USING model_results mr
		WHERE mr.id = m.model_result_id
		  AND (mr.status <> 'completed' OR mr.response = '')`

	tag, err := scope.Conn.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune mentions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *mentionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `
		SELECT m.id, m.prompt_id, m.topic_id, m.model_result_id, m.model, m.mention_type, m.position,
		       m.context, m.sentiment, m.confidence, m.extracted_text, m.competitor_name, m.created_at,
		       t.name
		FROM mentions m
		JOIN prompts p ON p.id = m.prompt_id
		JOIN topics t ON t.id = m.topic_id
		WHERE p.user_id = $1
		ORDER BY m.created_at DESC, m.id`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}
	defer rows.Close()

	mentions := make([]*models.Mention, 0)
	for rows.Next() {
		var m models.Mention
		err := rows.Scan(&m.ID, &m.PromptID, &m.TopicID, &m.ModelResultID, &m.Model, &m.MentionType,
			&m.Position, &m.Context, &m.Sentiment, &m.Confidence, &m.ExtractedText, &m.CompetitorName,
			&m.CreatedAt, &m.TopicName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mentions: %w", err)
	}
	return mentions, nil
}

func (r *mentionRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE m.mention_type = 'direct'),
		       COUNT(*) FILTER (WHERE m.mention_type = 'competitive'),
		       COUNT(*) FILTER (WHERE m.sentiment = 'positive')
		FROM mentions m
		JOIN prompts p ON p.id = m.prompt_id
		WHERE p.user_id = $1`

	var stats models.MentionStats
	if err := scope.Conn.QueryRow(ctx, query, userID).Scan(
		&stats.Total, &stats.Direct, &stats.Competitive, &stats.Positive,
	); err != nil {
		return nil, fmt.Errorf("failed to compute mention stats: %w", err)
	}
	return &stats, nil
}

var _ MentionRepository = (*mentionRepository)(nil)
