package domain

import "time"

// MarketStatus represents the lifecycle state of a market. Transitions are
// one-directional: pending -> locked -> resolved.
type MarketStatus string

const (
	MarketStatusPending  MarketStatus = "pending"
	MarketStatusLocked   MarketStatus = "locked"
	MarketStatusResolved MarketStatus = "resolved"
)

// Outcome identifies which side of a binary market won. The numeric values
// match the ledger program's winner encoding (1u64 / 2u64).
type Outcome uint64

const (
	OutcomeA Outcome = 1
	OutcomeB Outcome = 2
)

// PoolStats mirrors the ledger-resident stake aggregates for a market. The
// ledger is authoritative; these values are a read cache refreshed each tick
// and are never written back.
type PoolStats struct {
	TotalStaked   uint64
	OptionAStakes uint64
	OptionBStakes uint64
}

// Market is the unit of lifecycle management: a binary-outcome prediction
// pool anchored to an external metric.
type Market struct {
	ID           string  // opaque external identifier, primary key
	Deadline     int64   // Unix seconds; no new stakes and locking eligible at/after this
	Threshold    float64 // resolution comparison value, in the metric's unit
	MetricName   string  // registry key, resolved at resolve time
	Status       MarketStatus
	Description  string
	OptionALabel string // display only
	OptionBLabel string // display only
	Stats        PoolStats
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeadlinePassed reports whether the market's deadline is at or before now.
func (m Market) DeadlinePassed(now time.Time) bool {
	return now.Unix() >= m.Deadline
}

// Winner applies the resolution rule to a fetched metric value. The
// comparison is non-strict: a value exactly equal to the threshold resolves
// in favor of option A. This is a user-visible contract of every market.
func (m Market) Winner(value float64) Outcome {
	if value >= m.Threshold {
		return OutcomeA
	}
	return OutcomeB
}
