// Package registry is the authoritative store of order records. It holds
// committed snapshots: the engine replaces an order's record atomically after
// every state change, so readers never observe a half-applied trade.
package registry

import (
	"sort"
	"sync"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
)

// Registry stores order records keyed by id with a per-user index.
type Registry struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	byUser map[string][]string // user id -> order ids, submission order
}

func New() *Registry {
	return &Registry{
		orders: make(map[string]*order.Order),
		byUser: make(map[string][]string),
	}
}

// Put stores committed snapshots of the given orders under one lock, so a
// trade's taker and maker records become visible together.
func (r *Registry) Put(orders ...*order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range orders {
		if _, known := r.orders[o.ID]; !known {
			r.byUser[o.UserID] = append(r.byUser[o.UserID], o.ID)
		}
		r.orders[o.ID] = o.Clone()
	}
}

// Get returns a copy of the order record, or false if unknown.
func (r *Registry) Get(id string) (*order.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// ListByUser returns copies of all of a user's orders, oldest first.
func (r *Registry) ListByUser(userID string) []*order.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	out := make([]*order.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := r.orders[id]; ok {
			out = append(out, o.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Len returns the number of stored orders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
