// Package txlog is the append-only record of executed trades. Entries are
// immutable: there is no update or delete operation.
package txlog

import "sync"

// Transaction is one executed trade leg.
type Transaction struct {
	ID        string `json:"id"`
	Ticker    string `json:"ticker"`
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// MaxQueryLimit caps the result size of any history query regardless of what
// the caller asks for.
const MaxQueryLimit = 100

// Log stores transactions in append order.
type Log struct {
	mu      sync.RWMutex
	entries []Transaction
}

func New() *Log {
	return &Log{}
}

// Append records a trade. Appends arrive in timestamp order because the
// engine serializes submissions per instrument.
func (l *Log) Append(tx Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, tx)
}

// Query returns transactions newest first, optionally filtered by ticker
// and/or participant (buyer or seller). The result is capped at
// min(limit, MaxQueryLimit); limit <= 0 means MaxQueryLimit.
func (l *Log) Query(ticker string, limit int, participant string) []Transaction {
	if limit <= 0 || limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		tx := l.entries[i]
		if ticker != "" && tx.Ticker != ticker {
			continue
		}
		if participant != "" && tx.BuyerID != participant && tx.SellerID != participant {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Len returns the total number of recorded transactions.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
