package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_AllItemsSucceed(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	items := []WorkItem[string]{
		{ID: "a", Execute: func(ctx context.Context) (string, error) { return "ra", nil }},
		{ID: "b", Execute: func(ctx context.Context) (string, error) { return "rb", nil }},
		{ID: "c", Execute: func(ctx context.Context) (string, error) { return "rc", nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)

	// Completion order varies, so index by ID.
	byID := make(map[string]WorkResult[string])
	for _, r := range results {
		require.NoError(t, r.Err, "item %s", r.ID)
		byID[r.ID] = r
	}
	assert.Equal(t, "ra", byID["a"].Result)
	assert.Equal(t, "rb", byID["b"].Result)
	assert.Equal(t, "rc", byID["c"].Result)
}

func TestProcess_FailuresDoNotStopOthers(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	boom := errors.New("item failed")

	items := []WorkItem[int]{
		{ID: "ok1", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "bad", Execute: func(ctx context.Context) (int, error) { return 0, boom }},
		{ID: "ok2", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)

	byID := make(map[string]WorkResult[int])
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.NoError(t, byID["ok1"].Err)
	assert.Equal(t, boom, byID["bad"].Err)
	assert.NoError(t, byID["ok2"].Err)
}

func TestProcess_EmptyItems(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	assert.Nil(t, Process[string](context.Background(), pool, nil, nil))
}

func TestProcess_ContextCancellation(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	items := []WorkItem[string]{
		{ID: "first", Execute: func(ctx context.Context) (string, error) {
			cancel()
			time.Sleep(10 * time.Millisecond)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
				return "done", nil
			}
		}},
		{ID: "second", Execute: func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
				return "done", nil
			}
		}},
	}

	results := Process(ctx, pool, items, nil)
	require.Len(t, results, 2)

	cancelled := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Greater(t, cancelled, 0, "expected at least one item to observe cancellation")
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	const limit = 3
	pool := New(Config{MaxConcurrent: limit}, zap.NewNop())

	var current, maxObserved atomic.Int32

	items := make([]WorkItem[string], 10)
	for i := range items {
		items[i] = WorkItem[string]{
			ID: fmt.Sprintf("item%d", i),
			Execute: func(ctx context.Context) (string, error) {
				n := current.Add(1)
				defer current.Add(-1)
				for {
					prev := maxObserved.Load()
					if n <= prev || maxObserved.CompareAndSwap(prev, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				return "done", nil
			},
		}
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 10)

	assert.LessOrEqual(t, maxObserved.Load(), int32(limit))
	assert.GreaterOrEqual(t, maxObserved.Load(), int32(2), "expected some parallelism")
}

func TestProcess_ProgressCallback(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
		{ID: "c", Execute: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	var mu sync.Mutex
	var updates []int
	results := Process(context.Background(), pool, items, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		updates = append(updates, completed)
	})

	require.Len(t, results, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, updates)
}

func TestNew_CorrectsInvalidConfig(t *testing.T) {
	assert.Equal(t, 4, New(Config{MaxConcurrent: 0}, zap.NewNop()).config.MaxConcurrent)
	assert.Equal(t, 4, New(Config{MaxConcurrent: -1}, zap.NewNop()).config.MaxConcurrent)
	assert.Equal(t, 4, DefaultConfig().MaxConcurrent)
}
