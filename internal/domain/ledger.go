package domain

import (
	"context"
	"fmt"
)

// SubmissionKind classifies why a ledger submission failed. The scheduler
// retries next tick on every kind; the classification exists so operators and
// tests can tell a flaky node from a transaction the program rejected.
type SubmissionKind string

const (
	// SubmissionNetwork covers transport failures: the transaction may or
	// may not have reached the ledger.
	SubmissionNetwork SubmissionKind = "network"
	// SubmissionRejected means the ledger accepted the request and refused
	// the transaction (malformed inputs, pool in the wrong state).
	SubmissionRejected SubmissionKind = "rejected"
	// SubmissionUnauthorized means the oracle identity was not accepted.
	SubmissionUnauthorized SubmissionKind = "unauthorized"
)

// SubmissionError is returned by LedgerGateway.SubmitTransition when the
// external ledger does not acknowledge a transaction.
type SubmissionError struct {
	Kind     SubmissionKind
	Function string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger: submit %s (%s): %v", e.Function, e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// LedgerGateway wraps the external append-only ledger: authenticated state
// transitions in, eventually-consistent mapping reads out. All transitions
// are submitted under the single oracle signing identity the gateway holds.
type LedgerGateway interface {
	// SubmitTransition submits one program function call with positional,
	// ledger-encoded inputs and returns an opaque transaction id once the
	// ledger has accepted the transaction for processing. Acknowledgment of
	// submission is the only guarantee; on-chain finality is not.
	SubmitTransition(ctx context.Context, function string, inputs []string) (string, error)

	// ReadMapping reads one key of a ledger-resident public mapping. The
	// second return is false when the key is not yet present, which is not
	// an error.
	ReadMapping(ctx context.Context, mapping, key string) (string, bool, error)
}
