// Package ratelimit implements token bucket request throttling with an in-memory or
// Redis backed store. Buckets hold Capacity tokens and regain one token per Refill.
package ratelimit

import (
	"context"
	"time"
)

// Config describes one token bucket.
type Config struct {
	Capacity int
	Refill   time.Duration
}

func (c Config) normalized() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1
	}
	if c.Refill <= 0 {
		c.Refill = time.Second
	}
	return c
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter takes one token from the bucket identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
