package api

// Wire types for REST endpoints and WebSocket messages.

// ==============================
// REST Request Types
// ==============================

// RegisterRequest is the payload for POST /api/v1/public/register.
type RegisterRequest struct {
	Name string `json:"name"`
}

// CreateOrderRequest is the payload for POST /api/v1/order. A nil Price
// means market order, a positive Price means limit order.
type CreateOrderRequest struct {
	Direction string `json:"direction"` // "BUY" or "SELL"
	Ticker    string `json:"ticker"`
	Qty       int64  `json:"qty"`
	Price     *int64 `json:"price,omitempty"`
}

// InstrumentRequest is the payload for POST /api/v1/admin/instrument.
type InstrumentRequest struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// BalanceChangeRequest is the payload for the admin deposit and withdraw
// endpoints. Ticker names the asset, including the cash asset.
type BalanceChangeRequest struct {
	UserID string `json:"user_id"`
	Ticker string `json:"ticker"`
	Amount int64  `json:"amount"`
}

// ==============================
// REST Response Types
// ==============================

// UserInfo is returned from registration. The api_key is shown exactly once.
type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	APIKey string `json:"api_key"`
}

// InstrumentInfo describes one listed instrument.
type InstrumentInfo struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// OrderBody echoes the submitted order parameters inside OrderInfo.
type OrderBody struct {
	Direction string `json:"direction"`
	Ticker    string `json:"ticker"`
	Qty       int64  `json:"qty"`
	Price     *int64 `json:"price,omitempty"`
}

// OrderInfo is the full order record returned by the order endpoints.
type OrderInfo struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	UserID    string    `json:"user_id"`
	Timestamp int64     `json:"timestamp"` // unix milliseconds
	Body      OrderBody `json:"body"`
	Filled    int64     `json:"filled"`
}

// CreateOrderResponse is returned from order submission.
type CreateOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

// Ok is the generic acknowledgement body.
type Ok struct {
	Success bool `json:"success"`
}

// PriceLevel is one aggregated depth level.
type PriceLevel struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// L2OrderBook is the public depth snapshot. Bids sorted high to low,
// asks low to high.
type L2OrderBook struct {
	BidLevels []PriceLevel `json:"bid_levels"`
	AskLevels []PriceLevel `json:"ask_levels"`
}

// TransactionInfo is the public trade record. Counterparty identities are
// not exposed on the public endpoint.
type TransactionInfo struct {
	Ticker    string `json:"ticker"`
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["orderbook:MEMCOIN","trades:MEMCOIN"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// OrderbookUpdate is broadcast on the orderbook:<ticker> channel whenever
// the book for that ticker changes.
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	Ticker    string       `json:"ticker"`
	BidLevels []PriceLevel `json:"bid_levels"`
	AskLevels []PriceLevel `json:"ask_levels"`
	Timestamp int64        `json:"timestamp"`
}

// TradeUpdate is broadcast on the trades:<ticker> channel for every
// executed trade.
type TradeUpdate struct {
	Type      string `json:"type"` // "trade"
	Ticker    string `json:"ticker"`
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
	Timestamp int64  `json:"timestamp"`
}
