package engine

import (
	"errors"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/ledger"
)

// Failure taxonomy surfaced to callers. All are typed, none carry retry
// semantics: resubmission always creates a new order.
var (
	// ErrValidation rejects malformed quantity or price before any lookup.
	ErrValidation = errors.New("validation error")

	// ErrOrderNotFound is returned for unknown order ids (and for orders the
	// requester does not own, so ids cannot be probed).
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientLiquidity rejects a market order that cannot be filled
	// in full from resting liquidity.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrNotCancellable rejects cancellation of any order with fill progress
	// or in a terminal state. Partial fills are irreversible economic events.
	ErrNotCancellable = errors.New("order not cancellable")

	// ErrInternalInvariant means a balance would have gone negative despite
	// the feasibility pre-check. The submission is aborted with no partial
	// mutation; this is a bug, not a user error.
	ErrInternalInvariant = errors.New("internal invariant violation")

	// Re-exported so callers can match every engine failure in one place.
	ErrInstrumentNotFound  = instrument.ErrNotFound
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
)
