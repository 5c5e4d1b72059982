package txlog

import (
	"fmt"
	"testing"
)

func seed(l *Log, n int) {
	for i := 0; i < n; i++ {
		buyer := "alice"
		if i%2 == 1 {
			buyer = "bob"
		}
		l.Append(Transaction{
			ID:        fmt.Sprintf("tx-%d", i),
			Ticker:    "MEMCOIN",
			Amount:    int64(i + 1),
			Price:     100,
			BuyerID:   buyer,
			SellerID:  "carol",
			Timestamp: int64(i),
		})
	}
}

func TestQueryNewestFirst(t *testing.T) {
	l := New()
	seed(l, 5)

	got := l.Query("MEMCOIN", 10, "")
	if len(got) != 5 {
		t.Fatalf("got %d transactions, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Fatalf("not newest-first: %v before %v", got[i-1].Timestamp, got[i].Timestamp)
		}
	}
	if got[0].ID != "tx-4" {
		t.Errorf("first result = %s, want tx-4", got[0].ID)
	}
}

func TestQueryFilters(t *testing.T) {
	l := New()
	seed(l, 6)
	l.Append(Transaction{ID: "other", Ticker: "OTHER", Amount: 1, Price: 1, Timestamp: 99})

	tests := []struct {
		name        string
		ticker      string
		limit       int
		participant string
		want        int
	}{
		{name: "ticker filter", ticker: "MEMCOIN", limit: 100, want: 6},
		{name: "unknown ticker empty", ticker: "NOPE", limit: 100, want: 0},
		{name: "limit respected", ticker: "MEMCOIN", limit: 2, want: 2},
		{name: "buyer participant", ticker: "MEMCOIN", limit: 100, participant: "alice", want: 3},
		{name: "seller participant", ticker: "MEMCOIN", limit: 100, participant: "carol", want: 6},
		{name: "stranger sees nothing", ticker: "MEMCOIN", limit: 100, participant: "mallory", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Query(tt.ticker, tt.limit, tt.participant)
			if len(got) != tt.want {
				t.Errorf("got %d transactions, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQueryLimitCap(t *testing.T) {
	l := New()
	seed(l, MaxQueryLimit+20)

	if got := l.Query("MEMCOIN", MaxQueryLimit+20, ""); len(got) != MaxQueryLimit {
		t.Errorf("got %d transactions, cap is %d", len(got), MaxQueryLimit)
	}
	if got := l.Query("MEMCOIN", 0, ""); len(got) != MaxQueryLimit {
		t.Errorf("limit 0 should fall back to cap, got %d", len(got))
	}
}
