// Package storage persists exchange state to a Pebble database. The
// in-memory components stay authoritative; the store is written behind
// commits and read once at startup to restore state.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/txlog"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/user"
)

// BalanceRow is one persisted (user, asset) balance.
type BalanceRow struct {
	UserID string `json:"user_id"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// Store wraps a Pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setJSON(key []byte, v any, sync bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	opt := pebble.NoSync
	if sync {
		opt = pebble.Sync
	}
	if err := s.db.Set(key, data, opt); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SaveUser persists a user record.
func (s *Store) SaveUser(u user.User) error {
	return s.setJSON(userKey(u.ID), u, true)
}

// DeleteUser removes a persisted user record.
func (s *Store) DeleteUser(id string) error {
	if err := s.db.Delete(userKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// LoadUsers returns all persisted users.
func (s *Store) LoadUsers() ([]user.User, error) {
	var users []user.User
	err := s.scan([]byte(prefixUser), func(value []byte) error {
		var u user.User
		if err := json.Unmarshal(value, &u); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	})
	return users, err
}

// SaveInstrument persists an instrument.
func (s *Store) SaveInstrument(inst instrument.Instrument) error {
	return s.setJSON(instrumentKey(inst.Ticker), inst, true)
}

// DeleteInstrument removes a persisted instrument.
func (s *Store) DeleteInstrument(ticker string) error {
	if err := s.db.Delete(instrumentKey(ticker), pebble.Sync); err != nil {
		return fmt.Errorf("delete instrument %s: %w", ticker, err)
	}
	return nil
}

// LoadInstruments returns all persisted instruments.
func (s *Store) LoadInstruments() ([]instrument.Instrument, error) {
	var insts []instrument.Instrument
	err := s.scan([]byte(prefixInstrument), func(value []byte) error {
		var inst instrument.Instrument
		if err := json.Unmarshal(value, &inst); err != nil {
			return err
		}
		insts = append(insts, inst)
		return nil
	})
	return insts, err
}

// SaveBalance persists one (user, asset) balance.
func (s *Store) SaveBalance(userID, asset string, amount int64) error {
	row := BalanceRow{UserID: userID, Asset: asset, Amount: amount}
	return s.setJSON(balanceKey(userID, asset), row, false)
}

// LoadBalances returns all persisted balances.
func (s *Store) LoadBalances() ([]BalanceRow, error) {
	var rows []BalanceRow
	err := s.scan([]byte(prefixBalance), func(value []byte) error {
		var row BalanceRow
		if err := json.Unmarshal(value, &row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// SaveOrder persists an order record.
func (s *Store) SaveOrder(o *order.Order) error {
	return s.setJSON(orderKey(o.UserID, o.ID), o, false)
}

// LoadOrders returns all persisted orders, oldest first.
func (s *Store) LoadOrders() ([]*order.Order, error) {
	var orders []*order.Order
	err := s.scan([]byte(prefixOrder), func(value []byte) error {
		var o order.Order
		if err := json.Unmarshal(value, &o); err != nil {
			return err
		}
		orders = append(orders, &o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Timestamp < orders[j].Timestamp
	})
	return orders, nil
}

// SaveTrade persists a transaction. Trades are written NoSync: they are
// replayable history, not authoritative state.
func (s *Store) SaveTrade(tx txlog.Transaction) error {
	return s.setJSON(tradeKey(tx.Ticker, tx.Timestamp, tx.ID), tx, false)
}

// LoadTrades returns all persisted trades, oldest first across all tickers.
func (s *Store) LoadTrades() ([]txlog.Transaction, error) {
	var trades []txlog.Transaction
	err := s.scan([]byte(prefixTrade), func(value []byte) error {
		var tx txlog.Transaction
		if err := json.Unmarshal(value, &tx); err != nil {
			return err
		}
		trades = append(trades, tx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp < trades[j].Timestamp
	})
	return trades, nil
}

func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("iter %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
	}
	return iter.Error()
}
