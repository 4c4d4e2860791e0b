package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type bucket struct {
	tokens   int
	refilled time.Time
	seen     time.Time
}

// MemoryOptions tunes idle bucket eviction.
type MemoryOptions struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Logger          *zap.Logger
}

// MemoryLimiter keeps buckets in process memory. Start launches the eviction loop and
// Stop ends it; Allow works without Start but idle buckets then accumulate.
type MemoryLimiter struct {
	cfg     Config
	idleTTL time.Duration
	every   time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMemoryLimiter builds an in-memory limiter.
func NewMemoryLimiter(cfg Config, opts MemoryOptions) *MemoryLimiter {
	cfg = cfg.normalized()
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &MemoryLimiter{
		cfg:     cfg,
		idleTTL: opts.IdleTTL,
		every:   opts.CleanupInterval,
		logger:  opts.Logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.Capacity, refilled: now}
		l.buckets[key] = b
	}
	b.seen = now

	if elapsed := now.Sub(b.refilled); elapsed >= l.cfg.Refill {
		intervals := int(elapsed / l.cfg.Refill)
		b.tokens += intervals
		if b.tokens > l.cfg.Capacity {
			b.tokens = l.cfg.Capacity
		}
		b.refilled = b.refilled.Add(time.Duration(intervals) * l.cfg.Refill)
	}

	decision := Decision{Limit: l.cfg.Capacity}
	if b.tokens > 0 {
		b.tokens--
		decision.Allowed = true
	} else {
		decision.RetryAfter = l.cfg.Refill - now.Sub(b.refilled)
	}
	decision.Remaining = b.tokens
	return decision, nil
}

// Start launches periodic eviction of idle buckets until ctx ends or Stop is called.
func (l *MemoryLimiter) Start(ctx context.Context) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.loop(ctx, l.done)
}

// Stop ends the eviction loop and waits for it to exit.
func (l *MemoryLimiter) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done = nil, nil
}

// Len reports the number of tracked buckets.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := l.evictIdle(); evicted > 0 {
				l.logger.Debug("rate limit buckets evicted", zap.Int("evicted", evicted))
			}
		}
	}
}

func (l *MemoryLimiter) evictIdle() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}
