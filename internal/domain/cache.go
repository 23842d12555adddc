package domain

import (
	"context"
	"time"
)

// Lease is a held distributed lease. Renew extends the TTL; Release gives the
// lease up. Release is safe to call more than once.
type Lease interface {
	Renew(ctx context.Context) error
	Release()
}

// LeaseManager hands out exclusive leases. Exactly one worker instance may
// drive the lifecycle scheduler at a time; the lease is how a second instance
// finds out it must not start.
type LeaseManager interface {
	// Acquire obtains the lease for key with the given TTL, or returns
	// ErrLeaseHeld when another holder exists.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// SampleCache mirrors the most recent successful observation per metric so
// dashboards can read it without hitting third-party APIs. Writes are
// best-effort; the scheduler never blocks on this cache.
type SampleCache interface {
	SetLatest(ctx context.Context, metric string, value float64, ts time.Time) error
	GetLatest(ctx context.Context, metric string) (float64, time.Time, error)
}
