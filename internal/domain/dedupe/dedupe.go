// Package dedupe tracks rider ids claimed by merge work within one batch.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Claimer records claimed ids so each duplicate rider is scheduled at most once.
type Claimer interface {
	// Claim atomically checks if id was claimed and claims it if not.
	// Returns true if id was already claimed.
	Claim(ctx context.Context, id int64) bool

	// Release removes a claim, e.g. when the job holding it could not be enqueued.
	Release(ctx context.Context, id int64)

	Size() int64
}

// Option applies a configuration option to the tracker.
type Option func(*tracker)

// WithCapacityHint presizes the claim set.
func WithCapacityHint(n int) Option {
	return func(t *tracker) {
		if n > 0 {
			t.hint = n
		}
	}
}

type tracker struct {
	mu      sync.Mutex
	claimed map[int64]struct{}
	size    atomic.Int64
	hint    int
}

// NewTracker creates an empty batch scoped Claimer.
func NewTracker(opts ...Option) Claimer {
	t := &tracker{}
	for _, opt := range opts {
		opt(t)
	}
	t.claimed = make(map[int64]struct{}, t.hint)
	return t
}

func (t *tracker) Claim(_ context.Context, id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.claimed[id]; ok {
		return true
	}
	t.claimed[id] = struct{}{}
	t.size.Add(1)
	return false
}

func (t *tracker) Release(_ context.Context, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.claimed[id]; ok {
		delete(t.claimed, id)
		t.size.Add(-1)
	}
}

func (t *tracker) Size() int64 {
	return t.size.Load()
}
