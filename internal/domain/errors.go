package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict is returned by MarketStore.Advance when the stored
	// status no longer matches the expected from-status.
	ErrStatusConflict = errors.New("status conflict")

	// ErrNoProvider signals an unregistered metric name: a configuration
	// defect an operator must fix; the market is skipped every tick until
	// then.
	ErrNoProvider = errors.New("no provider registered for metric")

	// ErrNoValue is the generic "no value this attempt" failure from a
	// metric provider.
	ErrNoValue = errors.New("no metric value available")

	// ErrLeaseHeld means another worker instance already holds the
	// scheduler lease.
	ErrLeaseHeld = errors.New("lease already held")
)
