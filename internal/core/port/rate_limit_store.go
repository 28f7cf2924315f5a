package port

import (
	"context"
	"time"
)

// RateLimitStore persists sign-in attempt timestamps per identifier so
// the sliding-window limiter survives restarts. Identifiers are opaque
// here; callers key by credential or client address as needed.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
