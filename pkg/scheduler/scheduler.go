// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/config"
	"github.com/lookout-hq/lookout/pkg/services"
)

// MentionAnalyzer is the part of the mention analysis service the scheduler drives.
type MentionAnalyzer interface {
	AnalyzeMentions(ctx context.Context) (*services.AnalysisSummary, error)
}

// Scheduler owns the cron runner. Jobs share a context that is cancelled on Stop.
type Scheduler struct {
	cron     *cron.Cron
	analyzer MentionAnalyzer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	jobs   int
}

// New creates a scheduler and registers every job with a non-empty schedule.
// Schedules use the standard five-field cron syntax or descriptors like "@hourly".
func New(cfg config.SchedulerConfig, analyzer MentionAnalyzer, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	cronLogger := zapCronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(cronLogger), cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		analyzer: analyzer,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.MentionAnalysisCron != "" {
		if _, err := s.cron.AddFunc(cfg.MentionAnalysisCron, s.runMentionAnalysis); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid mention analysis schedule %q: %w", cfg.MentionAnalysisCron, err)
		}
		s.jobs++
		logger.Info("Mention analysis scheduled", zap.String("schedule", cfg.MentionAnalysisCron))
	}

	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.jobs
}

// Start begins running jobs in the background. It is a no-op when no job is registered.
func (s *Scheduler) Start() {
	if s.jobs == 0 {
		s.logger.Debug("No scheduled jobs configured")
		return
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", s.jobs))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) runMentionAnalysis() {
	s.logger.Info("Starting scheduled mention analysis")

	summary, err := s.analyzer.AnalyzeMentions(s.ctx)
	switch {
	case errors.Is(err, services.ErrAnalysisRunning):
		s.logger.Info("Mention analysis already running, skipping scheduled run")
	case err != nil:
		s.logger.Error("Scheduled mention analysis failed", zap.Error(err))
	default:
		s.logger.Info("Scheduled mention analysis complete",
			zap.Int("processed", summary.Processed),
			zap.Int("mentions_found", summary.MentionsFound),
			zap.Int("failed", summary.Failed))
	}
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
