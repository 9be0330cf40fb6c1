package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/models"
)

// ModelResultRepository defines the interface for provider result data access.
type ModelResultRepository interface {
	// Upsert writes the result for (prompt_id, model), replacing any earlier attempt.
	Upsert(ctx context.Context, result *models.ModelResult) error
	ListByPrompt(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error)
	// ListAnalyzable returns every completed result with a non-empty response,
	// joined with the topic of its prompt.
	ListAnalyzable(ctx context.Context) ([]*models.AnalyzableResult, error)
}

type modelResultRepository struct{}

// NewModelResultRepository creates a new model result repository.
func NewModelResultRepository() ModelResultRepository {
	return &modelResultRepository{}
}

func (r *modelResultRepository) Upsert(ctx context.Context, result *models.ModelResult) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return fmt.Errorf("no user scope in context")
	}

	metadata := result.ResponseMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal response metadata: %w", err)
	}
	searchResults := result.Results
	if searchResults == nil {
		searchResults = []models.SearchResult{}
	}
	resultsJSON, err := json.Marshal(searchResults)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}

	query := `
		INSERT INTO model_results (prompt_id, model, response, response_metadata, status, error_message, results, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (prompt_id, model) DO UPDATE
		SET response = EXCLUDED.response,
		    response_metadata = EXCLUDED.response_metadata,
		    status = EXCLUDED.status,
		    error_message = EXCLUDED.error_message,
		    results = EXCLUDED.results,
		    completed_at = EXCLUDED.completed_at,
		    updated_at = now()
		RETURNING id, completed_at, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		result.PromptID,
		result.Model,
		result.Response,
		metadataJSON,
		string(result.Status),
		result.ErrorMessage,
		resultsJSON,
	).Scan(&result.ID, &result.CompletedAt, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert model result: %w", err)
	}
	return nil
}

func (r *modelResultRepository) ListByPrompt(ctx context.Context, promptID uuid.UUID) ([]*models.ModelResult, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `
		SELECT id, prompt_id, model, response, response_metadata, status, error_message,
		       results, completed_at, created_at, updated_at
		FROM model_results
		WHERE prompt_id = $1
		ORDER BY model`

	rows, err := scope.Conn.Query(ctx, query, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.ModelResult, 0)
	for rows.Next() {
		mr, err := scanModelResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model results: %w", err)
	}
	return results, nil
}

func (r *modelResultRepository) ListAnalyzable(ctx context.Context) ([]*models.AnalyzableResult, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no user scope in context")
	}

	query := `
		SELECT mr.id, mr.prompt_id, p.topic_id, mr.model, mr.response, t.name, t.description
		FROM model_results mr
		JOIN prompts p ON p.id = mr.prompt_id
		JOIN topics t ON t.id = p.topic_id
		WHERE mr.status = 'completed' AND mr.response <> ''
		ORDER BY mr.created_at, mr.id`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyzable results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.AnalyzableResult, 0)
	for rows.Next() {
		var ar models.AnalyzableResult
		if err := rows.Scan(&ar.ModelResultID, &ar.PromptID, &ar.TopicID, &ar.Model, &ar.Response,
			&ar.TopicName, &ar.TopicDescription); err != nil {
			return nil, fmt.Errorf("failed to scan analyzable result: %w", err)
		}
		results = append(results, &ar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyzable results: %w", err)
	}
	return results, nil
}

func scanModelResult(row pgx.Row) (*models.ModelResult, error) {
	var mr models.ModelResult
	var metadataJSON, resultsJSON []byte
	err := row.Scan(
		&mr.ID,
		&mr.PromptID,
		&mr.Model,
		&mr.Response,
		&metadataJSON,
		&mr.Status,
		&mr.ErrorMessage,
		&resultsJSON,
		&mr.CompletedAt,
		&mr.CreatedAt,
		&mr.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan model result: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &mr.ResponseMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response metadata: %w", err)
		}
	}
	mr.Results = []models.SearchResult{}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &mr.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
		}
	}
	return &mr, nil
}

var _ ModelResultRepository = (*modelResultRepository)(nil)
