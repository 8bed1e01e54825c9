package payments

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotConfigured means the workspace has no payment provider set up.
	ErrProviderNotConfigured = errors.New("no payment provider configured for workspace")

	// ErrNoPrice means the booking has no price, so there is nothing to charge.
	ErrNoPrice = errors.New("booking has no price set")

	// ErrNotFound covers missing transactions and bookings, including cross-workspace
	// lookups, which are deliberately indistinguishable from missing rows.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means a provider event targets a transaction whose current
	// status cannot accept it (e.g. a refund against a never-completed payment).
	ErrInvalidTransition = errors.New("invalid transaction state transition")

	// ErrSignature means webhook signature verification failed. Always fail closed.
	ErrSignature = errors.New("webhook signature verification failed")

	// ErrIdempotencyUnavailable means the claim store could not be reached. Webhook
	// processing fails closed on this so the provider retries later.
	ErrIdempotencyUnavailable = errors.New("idempotency store unavailable")
)

// UnknownProviderError means a workspace is configured with a provider name that has
// no registered adapter.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown payment provider %q", e.Name)
}

// ProviderError wraps a failed outbound call to a payment provider: network errors,
// non-2xx responses and malformed bodies all surface as this. Adapters never retry;
// the message never carries credentials.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
