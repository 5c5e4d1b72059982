package book

import (
	"testing"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
)

func limitOrder(id string, dir order.Direction, qty, price, ts int64) *order.Order {
	return &order.Order{
		ID:        id,
		UserID:    "u-" + id,
		Ticker:    "MEMCOIN",
		Direction: dir,
		Kind:      order.Limit,
		Qty:       qty,
		Price:     price,
		Status:    order.New,
		Timestamp: ts,
	}
}

func ids(orders []*order.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestBestBidAsk(t *testing.T) {
	b := New()

	if _, ok := b.BestBid(); ok {
		t.Error("empty book reported a best bid")
	}

	b.Insert(limitOrder("b1", order.Buy, 1, 95, 1))
	b.Insert(limitOrder("b2", order.Buy, 1, 97, 2))
	b.Insert(limitOrder("a1", order.Sell, 1, 101, 3))
	b.Insert(limitOrder("a2", order.Sell, 1, 99, 4))

	if best, _ := b.BestBid(); best != 97 {
		t.Errorf("BestBid = %d, want 97", best)
	}
	if best, _ := b.BestAsk(); best != 99 {
		t.Errorf("BestAsk = %d, want 99", best)
	}
}

func TestCountersPriceTimePriority(t *testing.T) {
	b := New()
	b.Insert(limitOrder("a-old", order.Sell, 1, 100, 1))
	b.Insert(limitOrder("a-new", order.Sell, 1, 100, 2))
	b.Insert(limitOrder("a-cheap", order.Sell, 1, 99, 3))
	b.Insert(limitOrder("a-expensive", order.Sell, 1, 105, 4))

	tests := []struct {
		name       string
		dir        order.Direction
		limitPrice int64
		market     bool
		want       []string
	}{
		{
			name: "limit buy within price cap, best price then FIFO",
			dir:  order.Buy, limitPrice: 100,
			want: []string{"a-cheap", "a-old", "a-new"},
		},
		{
			name: "limit buy below all asks sees nothing",
			dir:  order.Buy, limitPrice: 98,
			want: nil,
		},
		{
			name: "market buy sees the whole side",
			dir:  order.Buy, market: true,
			want: []string{"a-cheap", "a-old", "a-new", "a-expensive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(b.Counters(tt.dir, tt.limitPrice, tt.market))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCountersSellSide(t *testing.T) {
	b := New()
	b.Insert(limitOrder("b-high", order.Buy, 1, 102, 1))
	b.Insert(limitOrder("b-low", order.Buy, 1, 98, 2))

	got := ids(b.Counters(order.Sell, 100, false))
	if len(got) != 1 || got[0] != "b-high" {
		t.Errorf("sell limit 100 should only see b-high, got %v", got)
	}

	got = ids(b.Counters(order.Sell, 0, true))
	if len(got) != 2 || got[0] != "b-high" || got[1] != "b-low" {
		t.Errorf("market sell should see highest bid first, got %v", got)
	}
}

func TestApplyFillsAndRemoval(t *testing.T) {
	b := New()
	maker := limitOrder("m1", order.Sell, 10, 100, 1)
	b.Insert(maker)

	touched := b.Apply([]Fill{{MakerID: "m1", Qty: 4}}, nil)
	if len(touched) != 1 || touched[0].Filled != 4 {
		t.Fatalf("partial fill not applied: %+v", touched)
	}
	if touched[0].Status != order.PartiallyExecuted {
		t.Errorf("status = %v, want PARTIALLY_EXECUTED", touched[0].Status)
	}
	if _, ok := b.BestAsk(); !ok {
		t.Error("partially filled maker left the book")
	}

	b.Apply([]Fill{{MakerID: "m1", Qty: 6}}, nil)
	if maker.Status != order.Executed {
		t.Errorf("status = %v, want EXECUTED", maker.Status)
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("fully executed maker still in the book")
	}
}

func TestApplyInsertsResting(t *testing.T) {
	b := New()
	resting := limitOrder("r1", order.Buy, 5, 90, 1)

	b.Apply(nil, resting)

	if best, ok := b.BestBid(); !ok || best != 90 {
		t.Fatalf("resting order not inserted, best=%d ok=%v", best, ok)
	}
}

func TestRemove(t *testing.T) {
	b := New()
	b.Insert(limitOrder("x", order.Buy, 5, 90, 1))

	o, ok := b.Remove("x")
	if !ok || o.ID != "x" {
		t.Fatal("Remove failed for resting order")
	}
	if _, ok := b.Remove("x"); ok {
		t.Error("second Remove succeeded")
	}
	if _, ok := b.BestBid(); ok {
		t.Error("price level survived removal of its only order")
	}
}

func TestDepthAggregation(t *testing.T) {
	b := New()
	b.Insert(limitOrder("b1", order.Buy, 3, 95, 1))
	b.Insert(limitOrder("b2", order.Buy, 2, 95, 2))
	b.Insert(limitOrder("b3", order.Buy, 1, 94, 3))
	b.Insert(limitOrder("a1", order.Sell, 4, 100, 4))

	// Partially fill one bid; depth must count remaining qty only.
	b.Apply([]Fill{{MakerID: "b1", Qty: 1}}, nil)

	bids, asks := b.Depth(10)

	if len(bids) != 2 {
		t.Fatalf("bid levels = %d, want 2", len(bids))
	}
	if bids[0].Price != 95 || bids[0].Qty != 4 {
		t.Errorf("bids[0] = %+v, want price 95 qty 4", bids[0])
	}
	if bids[1].Price != 94 || bids[1].Qty != 1 {
		t.Errorf("bids[1] = %+v, want price 94 qty 1", bids[1])
	}
	if len(asks) != 1 || asks[0].Price != 100 || asks[0].Qty != 4 {
		t.Errorf("asks = %+v", asks)
	}

	bids, _ = b.Depth(1)
	if len(bids) != 1 {
		t.Errorf("depth limit not applied, got %d levels", len(bids))
	}
}

func TestNoCrossWithinOneSide(t *testing.T) {
	b := New()
	b.Insert(limitOrder("b1", order.Buy, 1, 99, 1))
	b.Insert(limitOrder("a1", order.Sell, 1, 101, 2))

	bestBid, _ := b.BestBid()
	bestAsk, _ := b.BestAsk()
	if bestBid >= bestAsk {
		t.Errorf("book crossed: bid %d >= ask %d", bestBid, bestAsk)
	}
}
