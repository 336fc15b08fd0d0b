// Package workerpool runs independent work items with bounded parallelism.
// The comparison engine and the profiler use it to fan per-column work out
// across a fixed set of workers.
package workerpool

import (
	"context"

	"go.uber.org/zap"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // worker count; values below 1 select the default
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool fans work items out across a fixed number of worker goroutines.
// A Pool holds no state between Process calls and may be reused.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// WorkItem is one unit of work. The ID names the item in results and logs.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult pairs an item's ID with whatever its Execute returned.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item and returns one result per item, in completion
// order. A failing item is recorded and the rest still run. Once ctx is
// cancelled, items that have not started report ctx.Err() without
// executing; items already running decide for themselves how to honor the
// cancellation.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	pending := make(chan WorkItem[T], len(items))
	for _, item := range items {
		pending <- item
	}
	close(pending)

	workers := pool.config.MaxConcurrent
	if workers > len(items) {
		workers = len(items)
	}

	// Every item yields exactly one result and the channel holds them all,
	// so workers never block on send and the counted receive loop below is
	// the only synchronization needed.
	out := make(chan WorkResult[T], len(items))
	for w := 0; w < workers; w++ {
		go func() {
			for item := range pending {
				out <- runItem(ctx, pool.logger, item)
			}
		}()
	}

	results := make([]WorkResult[T], 0, len(items))
	for range items {
		results = append(results, <-out)
		if onProgress != nil {
			onProgress(len(results), len(items))
		}
	}
	return results
}

func runItem[T any](ctx context.Context, logger *zap.Logger, item WorkItem[T]) WorkResult[T] {
	if err := ctx.Err(); err != nil {
		var zero T
		return WorkResult[T]{ID: item.ID, Result: zero, Err: err}
	}
	result, err := item.Execute(ctx)
	if err != nil {
		logger.Debug("Work item failed",
			zap.String("id", item.ID),
			zap.Error(err))
	}
	return WorkResult[T]{ID: item.ID, Result: result, Err: err}
}
