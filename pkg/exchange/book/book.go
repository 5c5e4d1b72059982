// Package book keeps the resting limit orders for one instrument, split into
// a bid side and an ask side with price-time priority. The book itself never
// decides matches; the engine walks Counters and commits results via Apply
// while it holds the instrument's submission lock.
package book

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
)

// Level is one aggregated depth entry: total remaining quantity at a price.
type Level struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// Fill is one committed trade leg against a resting maker order.
type Fill struct {
	MakerID string
	Qty     int64
}

// Book holds resting limit orders for a single instrument.
//
// Price levels are FIFO slices keyed by price; heaps track the best price on
// each side for O(1) peeks. An id index gives O(1) cancellation lookups.
type Book struct {
	mu sync.RWMutex

	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	bids map[int64][]*order.Order // price -> FIFO queue
	asks map[int64][]*order.Order

	priceOf map[string]int64 // order id -> resting price
}

func New() *Book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64][]*order.Order),
		asks:    make(map[int64][]*order.Order),
		priceOf: make(map[string]int64),
	}
}

// Insert adds a resting limit order. Submission serialization guarantees FIFO
// position within a price level equals timestamp order.
func (b *Book) Insert(o *order.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insertLocked(o)
}

func (b *Book) insertLocked(o *order.Order) {
	if o.Direction == order.Buy {
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	} else {
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	}
	b.priceOf[o.ID] = o.Price
}

// Remove takes an order out of the match-eligible set. Returns the live
// order, or false if it is not resting.
func (b *Book) Remove(id string) (*order.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

func (b *Book) removeLocked(id string) (*order.Order, bool) {
	price, ok := b.priceOf[id]
	if !ok {
		return nil, false
	}

	if o, ok := b.removeFromSide(b.bids, price, id, true); ok {
		return o, true
	}
	if o, ok := b.removeFromSide(b.asks, price, id, false); ok {
		return o, true
	}
	return nil, false
}

func (b *Book) removeFromSide(side map[int64][]*order.Order, price int64, id string, isBid bool) (*order.Order, bool) {
	queue, exists := side[price]
	if !exists {
		return nil, false
	}
	for i, o := range queue {
		if o.ID != id {
			continue
		}
		side[price] = append(queue[:i], queue[i+1:]...)
		if len(side[price]) == 0 {
			delete(side, price)
			if isBid {
				b.removeFromBidHeap(price)
			} else {
				b.removeFromAskHeap(price)
			}
		}
		delete(b.priceOf, id)
		return o, true
	}
	return nil, false
}

// removeFromBidHeap removes a price level from the bid heap (O(N), rare).
func (b *Book) removeFromBidHeap(price int64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

// removeFromAskHeap removes a price level from the ask heap (O(N), rare).
func (b *Book) removeFromAskHeap(price int64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// Counters returns the resting orders eligible to trade against an incoming
// order of direction d, in price-time priority: best price first, then oldest
// first within a price. A limit BUY is eligible against asks at or below
// limitPrice; a market order against the whole opposite side. The returned
// pointers stay owned by the book; callers mutate them only through Apply.
func (b *Book) Counters(d order.Direction, limitPrice int64, market bool) []*order.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var (
		side      map[int64][]*order.Order
		ascending bool
	)
	if d == order.Buy {
		side, ascending = b.asks, true // cheapest ask first
	} else {
		side, ascending = b.bids, false // highest bid first
	}

	prices := make([]int64, 0, len(side))
	for p := range side {
		if !market {
			if d == order.Buy && p > limitPrice {
				continue
			}
			if d == order.Sell && p < limitPrice {
				continue
			}
		}
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool {
		if ascending {
			return prices[i] < prices[j]
		}
		return prices[i] > prices[j]
	})

	var out []*order.Order
	for _, p := range prices {
		out = append(out, side[p]...)
	}
	return out
}

// Apply commits the book-side effects of one submission in a single critical
// section: maker fill progress, removal of fully executed makers, and the
// insertion of a resting remainder. Returns the makers that changed.
func (b *Book) Apply(fills []Fill, resting *order.Order) []*order.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	var touched []*order.Order
	for _, f := range fills {
		price, ok := b.priceOf[f.MakerID]
		if !ok {
			continue
		}
		maker := b.findLocked(price, f.MakerID)
		if maker == nil {
			continue
		}
		maker.Filled += f.Qty
		maker.SyncStatus()
		if maker.Status == order.Executed {
			b.removeLocked(maker.ID)
		}
		touched = append(touched, maker)
	}

	if resting != nil {
		b.insertLocked(resting)
	}
	return touched
}

func (b *Book) findLocked(price int64, id string) *order.Order {
	for _, o := range b.bids[price] {
		if o.ID == id {
			return o
		}
	}
	for _, o := range b.asks[price] {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Depth aggregates remaining quantity per price level on both sides: bids
// high to low, asks low to high, truncated to limit levels per side.
func (b *Book) Depth(limit int) (bids, asks []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bids = aggregate(b.bids, false, limit)
	asks = aggregate(b.asks, true, limit)
	return bids, asks
}

func aggregate(side map[int64][]*order.Order, ascending bool, limit int) []Level {
	levels := make([]Level, 0, len(side))
	for price, orders := range side {
		var total int64
		for _, o := range orders {
			total += o.Remaining()
		}
		if total > 0 {
			levels = append(levels, Level{Price: price, Qty: total})
		}
	}
	sort.Slice(levels, func(i, j int) bool {
		if ascending {
			return levels[i].Price < levels[j].Price
		}
		return levels[i].Price > levels[j].Price
	})
	if limit > 0 && len(levels) > limit {
		levels = levels[:limit]
	}
	return levels
}
