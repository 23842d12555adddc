package domain

import "context"

// MetricProvider fetches a single numeric observation from one external data
// source. Each provider is pre-configured with its endpoint and credentials;
// FetchValue takes no runtime parameters beyond the context.
//
// Every failure path (network error, malformed response, missing credential,
// unexpected schema) must surface as an error return, never a panic. An error
// means "no value this attempt" and the caller retries on its own schedule.
//
// A provider encapsulates exactly one unit convention (USD, gwei, percentage,
// 0-100 index). Unit semantics are part of the metric's identity and must
// match the market threshold's unit at creation time; nothing downstream
// normalizes units.
type MetricProvider interface {
	Name() string
	FetchValue(ctx context.Context) (float64, error)
}
