package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/pkg/apperror"
)

// Scope names the cooldown bucket.
type Scope string

const (
	ScopeReview  Scope = "review"
	ScopeComment Scope = "comment"
	ScopeSignup  Scope = "signup"
)

// RateLimitError tells the caller how long to wait. It matches ErrRateLimitExceeded.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

// Limiter is a per-subject cooldown stored in redis. A nil client allows everything.
type Limiter struct {
	rdb    *redis.Client
	limits map[Scope]time.Duration
}

func New(rdb *redis.Client, limits map[Scope]time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limits: limits}
}

func key(subject string, scope Scope) string {
	return fmt.Sprintf("rate_limit:%s:%s", scope, subject)
}

// Acquire claims the cooldown for subject in scope. The returned release
// function clears it again, for callers whose operation then failed.
func (l *Limiter) Acquire(ctx context.Context, subject string, scope Scope) (func(), error) {
	noop := func() {}
	if l == nil || l.rdb == nil {
		return noop, nil
	}

	limit := l.limits[scope]
	if limit <= 0 {
		return noop, nil
	}

	k := key(subject, scope)
	wasSet, err := l.rdb.SetNX(ctx, k, "locked", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	if !wasSet {
		ttl, err := l.rdb.TTL(ctx, k).Result()
		if err != nil || ttl < 0 {
			ttl = limit
		}
		return nil, &RateLimitError{
			Message:    fmt.Sprintf("you are doing that too fast, please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	return func() {
		if err := l.rdb.Del(context.WithoutCancel(ctx), k).Err(); err != nil {
			logging.Warn().Err(err).Str("key", k).Msg("failed to release rate limit")
		}
	}, nil
}
