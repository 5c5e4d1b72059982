// Package ledger holds per-(user, asset) integer balances and is the only
// place balances are ever mutated. Every mutation preserves the
// non-negativity invariant: no operation can leave any balance below zero.
package ledger

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientBalance is returned when a debit would take a balance
// below zero. The balance is left unchanged.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Entry is one signed balance adjustment of a batch.
type Entry struct {
	UserID string
	Asset  string
	Delta  int64
}

type key struct {
	user  string
	asset string
}

// Ledger is a thread-safe balance store. Rows are created lazily on first
// credit and never deleted.
type Ledger struct {
	mu       sync.RWMutex
	balances map[key]int64
}

func New() *Ledger {
	return &Ledger{balances: make(map[key]int64)}
}

// Read returns the current balance, zero if the row does not exist.
func (l *Ledger) Read(userID, asset string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key{userID, asset}]
}

// Balances returns a snapshot of all of a user's balances.
func (l *Ledger) Balances(userID string) map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int64)
	for k, v := range l.balances {
		if k.user == userID {
			out[k.asset] = v
		}
	}
	return out
}

// Adjust applies a single signed delta. A debit that would take the balance
// below zero fails with ErrInsufficientBalance and mutates nothing.
func (l *Ledger) Adjust(userID, asset string, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID, asset}
	next := l.balances[k] + delta
	if next < 0 {
		return fmt.Errorf("%w: %s/%s has %d, delta %d", ErrInsufficientBalance,
			userID, asset, l.balances[k], delta)
	}
	l.balances[k] = next
	return nil
}

// ApplyBatch applies all entries as a single atomic unit. The entries are
// validated in order against a staged view; if any intermediate balance
// would go negative, nothing is applied and ErrInsufficientBalance is
// returned. All legs of one trade must travel in one batch.
func (l *Ledger) ApplyBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[key]int64, len(entries))
	for _, e := range entries {
		k := key{e.UserID, e.Asset}
		cur, ok := staged[k]
		if !ok {
			cur = l.balances[k]
		}
		next := cur + e.Delta
		if next < 0 {
			return fmt.Errorf("%w: %s/%s has %d, delta %d", ErrInsufficientBalance,
				e.UserID, e.Asset, cur, e.Delta)
		}
		staged[k] = next
	}

	for k, v := range staged {
		l.balances[k] = v
	}
	return nil
}

// Total returns the sum of all users' balances of one asset. Matching only
// moves value between users, so Total is invariant under trades.
func (l *Ledger) Total(asset string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum int64
	for k, v := range l.balances {
		if k.asset == asset {
			sum += v
		}
	}
	return sum
}
