package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerPoolConfig bounds how many LLM calls run at once.
type WorkerPoolConfig struct {
	MaxConcurrent int
}

// DefaultWorkerPoolConfig runs items sequentially.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{MaxConcurrent: 1}
}

// WorkerPool runs LLM-bound work with a fixed parallelism. One item's
// failure never stops the others.
type WorkerPool struct {
	limit  int
	logger *zap.Logger
}

func NewWorkerPool(cfg WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		limit:  max(cfg.MaxConcurrent, 1),
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *WorkerPool) MaxConcurrent() int {
	return p.limit
}

// WorkItem is one unit of work identified by ID in its result.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult carries an item's value or error.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns the results in item order. Items
// still waiting for a slot when ctx ends are not run and report ctx.Err().
// onProgress, if set, is called serially after each item finishes.
func Process[T any](ctx context.Context, pool *WorkerPool, items []WorkItem[T], onProgress func(completed, total int)) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	var (
		mu        sync.Mutex
		completed int
	)
	finish := func(i int, res WorkResult[T]) {
		results[i] = res
		mu.Lock()
		defer mu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	var g errgroup.Group
	g.SetLimit(pool.limit)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			finish(i, WorkResult[T]{ID: item.ID, Err: err})
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, WorkResult[T]{ID: item.ID, Err: err})
				return nil
			}
			value, err := item.Execute(ctx)
			finish(i, WorkResult[T]{ID: item.ID, Result: value, Err: err})
			return nil
		})
	}
	_ = g.Wait()

	pool.logger.Debug("Work items processed",
		zap.Int("items", len(items)),
		zap.Int("max_concurrent", pool.limit))
	return results
}
