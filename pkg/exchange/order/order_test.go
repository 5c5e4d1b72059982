package order

import (
	"encoding/json"
	"testing"
)

func TestSyncStatus(t *testing.T) {
	tests := []struct {
		name   string
		filled int64
		start  Status
		want   Status
	}{
		{name: "untouched stays NEW", filled: 0, start: New, want: New},
		{name: "partial fill", filled: 4, start: New, want: PartiallyExecuted},
		{name: "full fill", filled: 10, start: New, want: Executed},
		{name: "cancelled is terminal", filled: 0, start: Cancelled, want: Cancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Qty: 10, Filled: tt.filled, Status: tt.start}
			o.SyncStatus()
			if o.Status != tt.want {
				t.Errorf("status = %v, want %v", o.Status, tt.want)
			}
		})
	}
}

func TestRemainingAndIsOpen(t *testing.T) {
	o := &Order{Qty: 10, Filled: 3, Status: PartiallyExecuted}
	if o.Remaining() != 7 {
		t.Errorf("Remaining = %d, want 7", o.Remaining())
	}
	if !o.IsOpen() {
		t.Error("partially executed order should be open")
	}

	o.Status = Cancelled
	if o.IsOpen() {
		t.Error("cancelled order should not be open")
	}
}

func TestCloneIndependence(t *testing.T) {
	o := &Order{ID: "o1", Qty: 10, Status: New}
	c := o.Clone()
	c.Filled = 5
	c.Status = PartiallyExecuted

	if o.Filled != 0 || o.Status != New {
		t.Error("clone mutation leaked into original")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	o := Order{
		ID:        "o1",
		UserID:    "alice",
		Ticker:    "MEMCOIN",
		Direction: Sell,
		Kind:      Limit,
		Qty:       10,
		Price:     100,
		Filled:    3,
		Status:    PartiallyExecuted,
		Timestamp: 1234,
	}

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back Order
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != o {
		t.Errorf("round trip changed order:\ngot  %+v\nwant %+v", back, o)
	}
}

func TestStatusWireFormat(t *testing.T) {
	raw, _ := json.Marshal(PartiallyExecuted)
	if string(raw) != `"PARTIALLY_EXECUTED"` {
		t.Errorf("status wire form = %s", raw)
	}

	var d Direction
	if err := json.Unmarshal([]byte(`"SELL"`), &d); err != nil || d != Sell {
		t.Errorf("direction decode = %v, %v", d, err)
	}
	if err := json.Unmarshal([]byte(`"HOLD"`), &d); err == nil {
		t.Error("invalid direction accepted")
	}
}
