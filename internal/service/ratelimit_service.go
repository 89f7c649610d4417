package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/repodock/repodock/internal/port"
)

// RateLimiter applies a sliding-window limit per key on top of a shared
// window store, so the decision holds across replicas.
type RateLimiter struct {
	store port.WindowStore
}

// NewRateLimiter creates a limiter backed by the given window store.
func NewRateLimiter(store port.WindowStore) *RateLimiter {
	return &RateLimiter{store: store}
}

// RateKey builds the window key for an endpoint and caller identity.
func RateKey(endpoint, subject string) string {
	return "rate_limit:" + endpoint + ":" + subject
}

// Allow records one request attempt against key and decides whether it may
// proceed. A denied attempt is not recorded, so waiting out the window
// always restores capacity. If the window store is unreachable the request
// is allowed; limiting degrades rather than taking the API down.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) port.Decision {
	now := time.Now()
	resetAt := now.Add(window).Unix()

	if limit <= 0 {
		return port.Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: int(window.Seconds()),
		}
	}

	score := float64(now.UnixNano()) / float64(time.Second)
	windowStart := score - window.Seconds()

	count, err := l.store.Slide(ctx, key, windowStart, uuid.New().String(), score, limit, window)
	if err != nil {
		slog.Error("rate limit store unavailable, allowing request", "key", key, "error", err)
		return port.Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetAt:   resetAt,
		}
	}

	if count >= int64(limit) {
		return port.Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: int(window.Seconds()),
		}
	}

	return port.Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count) - 1,
		ResetAt:   resetAt,
	}
}
