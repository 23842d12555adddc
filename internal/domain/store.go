package domain

import "context"

// MarketStore persists markets and their lifecycle state. All operations are
// transactional at single-row granularity; no cross-row transactions exist.
type MarketStore interface {
	// Upsert inserts or fully replaces a market row by ID. Used only by the
	// creation flow; the scheduler never calls it.
	Upsert(ctx context.Context, market Market) error

	// GetByID retrieves a market. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (Market, error)

	// ListByStatus returns every market currently in the given status. Order
	// is unspecified; callers must process members independently.
	ListByStatus(ctx context.Context, status MarketStatus) ([]Market, error)

	// Advance moves a market from one status to the next. The write is
	// guarded: if the stored status does not match from, no row changes and
	// ErrStatusConflict is returned. This turns the one-directional
	// transition invariant into an enforced property and makes a second
	// concurrently-running instance fail loudly instead of corrupting state.
	Advance(ctx context.Context, id string, from, to MarketStatus) error

	// UpdateStats overwrites the cached on-chain stake aggregates.
	UpdateStats(ctx context.Context, id string, stats PoolStats) error

	// Count returns the total number of known markets.
	Count(ctx context.Context) (int64, error)
}
