package order

import (
	"encoding/json"
	"fmt"
)

// Direction is the side of an order.
type Direction int8

const (
	Buy  Direction = 1
	Sell Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection converts the wire representation ("BUY"/"SELL").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid direction: %q", s)
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Kind is the closed order variant: a limit order carries a price and may
// rest in the book, a market order never rests.
type Kind int8

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "LIMIT":
		*k = Limit
	case "MARKET":
		*k = Market
	default:
		return fmt.Errorf("invalid order kind: %q", s)
	}
	return nil
}

// Status is the lifecycle state of an order.
type Status int8

const (
	New Status = iota
	PartiallyExecuted
	Executed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case PartiallyExecuted:
		return "PARTIALLY_EXECUTED"
	case Executed:
		return "EXECUTED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "NEW":
		*s = New
	case "PARTIALLY_EXECUTED":
		*s = PartiallyExecuted
	case "EXECUTED":
		*s = Executed
	case "CANCELLED":
		*s = Cancelled
	default:
		return fmt.Errorf("invalid order status: %q", str)
	}
	return nil
}

// Order is the shared envelope for both variants. Price is zero exactly when
// Kind == Market.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Ticker    string    `json:"ticker"`
	Direction Direction `json:"direction"`
	Kind      Kind      `json:"kind"`
	Qty       int64     `json:"qty"`
	Price     int64     `json:"price,omitempty"`
	Filled    int64     `json:"filled"`
	Status    Status    `json:"status"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds, tie-break key
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// IsOpen reports whether the order is still eligible for matching.
func (o *Order) IsOpen() bool {
	return o.Status == New || o.Status == PartiallyExecuted
}

// SyncStatus recomputes the status from fill progress. Terminal cancellation
// is never overwritten.
func (o *Order) SyncStatus() {
	if o.Status == Cancelled {
		return
	}
	switch {
	case o.Filled == o.Qty:
		o.Status = Executed
	case o.Filled > 0:
		o.Status = PartiallyExecuted
	default:
		o.Status = New
	}
}

// Clone returns an independent copy.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}
