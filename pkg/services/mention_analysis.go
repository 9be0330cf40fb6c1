package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/apperrors"
	"github.com/lookout-hq/lookout/pkg/jsonutil"
	"github.com/lookout-hq/lookout/pkg/llm"
	"github.com/lookout-hq/lookout/pkg/metrics"
	"github.com/lookout-hq/lookout/pkg/models"
	"github.com/lookout-hq/lookout/pkg/repositories"
)

// maxMentionContext caps the stored context snippet, in characters.
const maxMentionContext = 100

// ErrAnalysisRunning is returned when a mention analysis run is already in progress.
var ErrAnalysisRunning = fmt.Errorf("mention analysis already running: %w", apperrors.ErrConflict)

// AnalysisSummary reports one mention analysis run.
type AnalysisSummary struct {
	Processed     int `json:"processed"`
	MentionsFound int `json:"mentionsFound"`
	// Failed counts results whose mentions could not be stored.
	Failed int `json:"failed"`
}

// MentionAnalysisService derives mention rows from completed provider results.
type MentionAnalysisService interface {
	// AnalyzeMentions recomputes the mentions of every completed result. Each
	// result's mentions are replaced atomically; mentions of results that are
	// no longer completed are pruned at the end.
	AnalyzeMentions(ctx context.Context) (*AnalysisSummary, error)
	ListMentions(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error)
}

// ScopeProvider opens database scopes for work that outlives or runs outside a request.
type ScopeProvider interface {
	WithSystemScope(ctx context.Context) (context.Context, func(), error)
}

// mentionSchema describes the structured output requested from the model.
type mentionSchema struct {
	Mentions []struct {
		MentionType    string  `json:"mentionType" enum:"direct,indirect,competitive"`
		Position       float64 `json:"position" description:"1-based order of appearance"`
		Context        string  `json:"context"`
		Sentiment      string  `json:"sentiment" enum:"positive,negative,neutral"`
		Confidence     float64 `json:"confidence" description:"0.0 to 1.0"`
		ExtractedText  string  `json:"extractedText"`
		CompetitorName string  `json:"competitorName" description:"Competitor name for competitive mentions, otherwise null"`
	} `json:"mentions"`
}

// detectedMentions is what the model actually returned. Numbers and strings
// are both accepted for position and confidence.
type detectedMentions struct {
	Mentions []detectedMention `json:"mentions"`
}

type detectedMention struct {
	MentionType    string              `json:"mentionType"`
	Position       jsonutil.FlexString `json:"position"`
	Context        string              `json:"context"`
	Sentiment      string              `json:"sentiment"`
	Confidence     jsonutil.FlexString `json:"confidence"`
	ExtractedText  string              `json:"extractedText"`
	CompetitorName *string             `json:"competitorName"`
}

type mentionAnalysisService struct {
	modelResultRepo repositories.ModelResultRepository
	mentionRepo     repositories.MentionRepository
	scopes          ScopeProvider
	extractor       llm.ObjectGenerator
	pool            *llm.WorkerPool
	metrics         *metrics.Metrics
	running         atomic.Bool
	logger          *zap.Logger
}

// NewMentionAnalysisService creates a new mention analysis service.
// concurrency bounds how many results are analyzed at once; 1 runs sequentially.
func NewMentionAnalysisService(
	modelResultRepo repositories.ModelResultRepository,
	mentionRepo repositories.MentionRepository,
	scopes ScopeProvider,
	extractor llm.ObjectGenerator,
	concurrency int,
	m *metrics.Metrics,
	logger *zap.Logger,
) MentionAnalysisService {
	named := logger.Named("mention-analysis")
	return &mentionAnalysisService{
		modelResultRepo: modelResultRepo,
		mentionRepo:     mentionRepo,
		scopes:          scopes,
		extractor:       extractor,
		pool:            llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: concurrency}, named),
		metrics:         m,
		logger:          named,
	}
}

func (s *mentionAnalysisService) AnalyzeMentions(ctx context.Context) (*AnalysisSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.ObserveMentionRun(metrics.OutcomeSkipped, 0)
		return nil, ErrAnalysisRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	summary, err := s.analyze(ctx)
	if err != nil {
		s.metrics.ObserveMentionRun(metrics.OutcomeError, 0)
		s.logger.Error("Mention analysis failed", zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveMentionRun(metrics.OutcomeSuccess, summary.MentionsFound)
	s.logger.Info("Mention analysis complete",
		zap.Int("processed", summary.Processed),
		zap.Int("mentions_found", summary.MentionsFound),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return summary, nil
}

func (s *mentionAnalysisService) analyze(ctx context.Context) (*AnalysisSummary, error) {
	results, err := s.listAnalyzable(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Analyzing mentions",
		zap.Int("results", len(results)),
		zap.Int("concurrency", s.pool.MaxConcurrent()))

	items := make([]llm.WorkItem[int], 0, len(results))
	for _, r := range results {
		items = append(items, llm.WorkItem[int]{
			ID: r.ModelResultID.String(),
			Execute: func(ctx context.Context) (int, error) {
				return s.analyzeResult(ctx, r)
			},
		})
	}

	summary := &AnalysisSummary{}
	for _, res := range llm.Process(ctx, s.pool, items, nil) {
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				continue
			}
			summary.Failed++
			s.logger.Error("Failed to store mentions",
				zap.String("model_result_id", res.ID),
				zap.Error(res.Err))
			continue
		}
		summary.Processed++
		summary.MentionsFound += res.Result
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mention analysis interrupted after %d results: %w", summary.Processed, err)
	}

	pruned, err := s.pruneOrphans(ctx)
	if err != nil {
		return nil, err
	}
	if pruned > 0 {
		s.logger.Info("Pruned mentions of results no longer completed", zap.Int64("deleted", pruned))
	}
	return summary, nil
}

func (s *mentionAnalysisService) listAnalyzable(ctx context.Context) ([]*models.AnalyzableResult, error) {
	scopedCtx, cleanup, err := s.scopes.WithSystemScope(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database scope: %w", err)
	}
	defer cleanup()
	return s.modelResultRepo.ListAnalyzable(scopedCtx)
}

func (s *mentionAnalysisService) pruneOrphans(ctx context.Context) (int64, error) {
	scopedCtx, cleanup, err := s.scopes.WithSystemScope(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire database scope: %w", err)
	}
	defer cleanup()
	return s.mentionRepo.PruneOrphans(scopedCtx)
}

// analyzeResult extracts and stores the mentions of one result. Each call
// holds its own connection so results can be written in parallel.
func (s *mentionAnalysisService) analyzeResult(ctx context.Context, r *models.AnalyzableResult) (int, error) {
	mentions := s.extract(ctx, r)

	scopedCtx, cleanup, err := s.scopes.WithSystemScope(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire database scope: %w", err)
	}
	defer cleanup()

	if err := s.mentionRepo.ReplaceForResult(scopedCtx, r.ModelResultID, mentions); err != nil {
		return 0, err
	}
	return len(mentions), nil
}

// extract asks the model for mentions. Any failure yields no mentions.
func (s *mentionAnalysisService) extract(ctx context.Context, r *models.AnalyzableResult) []*models.Mention {
	var out detectedMentions
	err := s.extractor.GenerateObject(ctx, llm.ObjectRequest{
		Name:        "mentions",
		Description: "Brand mentions found in the text",
		Prompt:      buildMentionPrompt(r.Response, r.TopicName, r.TopicDescription),
		Schema:      mentionSchema{},
	}, &out)
	if err != nil {
		s.logger.Warn("Mention extraction failed, treating as no mentions",
			zap.String("model_result_id", r.ModelResultID.String()),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.Error(err))
		return nil
	}

	mentions := make([]*models.Mention, 0, len(out.Mentions))
	for _, d := range out.Mentions {
		m, ok := toMention(r, d)
		if !ok {
			s.logger.Debug("Dropping mention with unknown classification",
				zap.String("model_result_id", r.ModelResultID.String()),
				zap.String("mention_type", d.MentionType),
				zap.String("sentiment", d.Sentiment))
			continue
		}
		mentions = append(mentions, m)
	}
	return mentions
}

func toMention(r *models.AnalyzableResult, d detectedMention) (*models.Mention, bool) {
	mentionType := models.MentionType(strings.ToLower(strings.TrimSpace(d.MentionType)))
	sentiment := models.Sentiment(strings.ToLower(strings.TrimSpace(d.Sentiment)))
	if !mentionType.IsValid() || !sentiment.IsValid() {
		return nil, false
	}

	var competitor *string
	if d.CompetitorName != nil && strings.TrimSpace(*d.CompetitorName) != "" {
		name := strings.TrimSpace(*d.CompetitorName)
		competitor = &name
	}

	return &models.Mention{
		PromptID:       r.PromptID,
		TopicID:        r.TopicID,
		ModelResultID:  r.ModelResultID,
		Model:          r.Model,
		MentionType:    mentionType,
		Position:       d.Position.String(),
		Context:        truncateRunes(d.Context, maxMentionContext),
		Sentiment:      sentiment,
		Confidence:     d.Confidence.String(),
		ExtractedText:  d.ExtractedText,
		CompetitorName: competitor,
	}, true
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func (s *mentionAnalysisService) ListMentions(ctx context.Context, userID uuid.UUID) ([]*models.Mention, error) {
	return s.mentionRepo.ListByUser(ctx, userID)
}

func (s *mentionAnalysisService) Stats(ctx context.Context, userID uuid.UUID) (*models.MentionStats, error) {
	return s.mentionRepo.StatsByUser(ctx, userID)
}

var _ MentionAnalysisService = (*mentionAnalysisService)(nil)
