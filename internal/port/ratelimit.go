package port

import (
	"context"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool  `json:"allowed"`
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	ResetAt    int64 `json:"reset_at"`
	RetryAfter int   `json:"retry_after,omitempty"` // seconds, zero when allowed
}

// WindowStore is the shared counter store backing the sliding-window
// limiter. Slide executes the whole window operation atomically per key:
// drop members scored below windowStart, count the remainder, and, only if
// the count is below limit, insert member at score and refresh the key's
// TTL. It returns the pre-insert count; the caller derives the decision
// from count < limit, the same comparison the store used.
type WindowStore interface {
	Slide(ctx context.Context, key string, windowStart float64, member string, score float64, limit int, ttl time.Duration) (int64, error)
}
