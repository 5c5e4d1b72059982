// Package api exposes the exchange over REST and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/book"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/engine"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/ledger"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/txlog"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/user"
	"github.com/voodoo-o/toy-exchange/pkg/storage"
)

const defaultDepthLevels = 10

// Server handles REST API and WebSocket connections.
type Server struct {
	engine *engine.Engine
	users  *user.Directory
	insts  *instrument.Registry
	store  *storage.Store // nil disables persistence of users/instruments
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

// NewServer wires the REST router and WebSocket hub around the engine.
// The server registers itself as the engine's notifier.
func NewServer(eng *engine.Engine, users *user.Directory, insts *instrument.Registry, store *storage.Store, log *zap.Logger) *Server {
	s := &Server{
		engine: eng,
		users:  users,
		insts:  insts,
		store:  store,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}

	eng.SetNotifier(s)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public endpoints, no auth.
	api.HandleFunc("/public/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/public/instrument", s.handleListInstruments).Methods("GET")
	api.HandleFunc("/public/orderbook/{ticker}", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/public/transactions/{ticker}", s.handleGetTransactions).Methods("GET")

	// Authenticated trading endpoints.
	api.HandleFunc("/order", s.requireAuth(s.handleCreateOrder)).Methods("POST")
	api.HandleFunc("/order", s.requireAuth(s.handleListOrders)).Methods("GET")
	api.HandleFunc("/order/{order_id}", s.requireAuth(s.handleGetOrder)).Methods("GET")
	api.HandleFunc("/order/{order_id}", s.requireAuth(s.handleCancelOrder)).Methods("DELETE")
	api.HandleFunc("/balance", s.requireAuth(s.handleGetBalances)).Methods("GET")

	// Admin endpoints.
	api.HandleFunc("/admin/balance/deposit", s.requireAdmin(s.handleDeposit)).Methods("POST")
	api.HandleFunc("/admin/balance/withdraw", s.requireAdmin(s.handleWithdraw)).Methods("POST")
	api.HandleFunc("/admin/instrument", s.requireAdmin(s.handleCreateInstrument)).Methods("POST")
	api.HandleFunc("/admin/instrument/{ticker}", s.requireAdmin(s.handleDeleteInstrument)).Methods("DELETE")
	api.HandleFunc("/admin/user/{user_id}", s.requireAdmin(s.handleDeleteUser)).Methods("DELETE")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// Public Handlers
// ==============================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	u, err := s.users.Register(req.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "registration failed", err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.SaveUser(u); err != nil {
			s.log.Warn("persist user failed", zap.String("user", u.ID), zap.Error(err))
		}
	}

	s.log.Info("user registered", zap.String("user", u.ID), zap.String("name", u.Name))
	respondJSON(w, http.StatusOK, userInfo(u))
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	insts := s.insts.List()
	response := make([]InstrumentInfo, len(insts))
	for i, inst := range insts {
		response[i] = InstrumentInfo{Name: inst.Name, Ticker: inst.Ticker}
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	limit := queryLimit(r, defaultDepthLevels)

	bids, asks, err := s.engine.Depth(ticker, limit)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	response := L2OrderBook{
		BidLevels: toPriceLevels(bids),
		AskLevels: toPriceLevels(asks),
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	limit := queryLimit(r, txlog.MaxQueryLimit)

	txs := s.engine.Transactions(ticker, limit, "")
	response := make([]TransactionInfo, len(txs))
	for i, tx := range txs {
		response[i] = TransactionInfo{
			Ticker:    tx.Ticker,
			Amount:    tx.Amount,
			Price:     tx.Price,
			Timestamp: tx.Timestamp,
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// ==============================
// Trading Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	dir, err := order.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid direction", err.Error())
		return
	}

	kind, price := order.Market, int64(0)
	if req.Price != nil {
		kind, price = order.Limit, *req.Price
	}

	o, err := s.engine.Submit(caller.ID, req.Ticker, dir, kind, req.Qty, price)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CreateOrderResponse{Success: true, OrderID: o.ID})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	orders := s.engine.OrdersByUser(caller.ID)
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())
	orderID := mux.Vars(r)["order_id"]

	o, err := s.engine.Order(orderID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	// Orders are private to their owner.
	if o.UserID != caller.ID {
		s.respondEngineError(w, engine.ErrOrderNotFound)
		return
	}

	respondJSON(w, http.StatusOK, orderInfo(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())
	orderID := mux.Vars(r)["order_id"]

	if err := s.engine.Cancel(orderID, caller.ID); err != nil {
		s.respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Ok{Success: true})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())
	respondJSON(w, http.StatusOK, s.engine.Balances(caller.ID))
}

// ==============================
// Admin Handlers
// ==============================

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBalanceChange(w, r)
	if !ok {
		return
	}

	if err := s.engine.Deposit(req.UserID, req.Ticker, req.Amount); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.log.Info("deposit",
		zap.String("user", req.UserID),
		zap.String("asset", req.Ticker),
		zap.Int64("amount", req.Amount))
	respondJSON(w, http.StatusOK, Ok{Success: true})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBalanceChange(w, r)
	if !ok {
		return
	}

	if err := s.engine.Withdraw(req.UserID, req.Ticker, req.Amount); err != nil {
		s.respondEngineError(w, err)
		return
	}

	s.log.Info("withdraw",
		zap.String("user", req.UserID),
		zap.String("asset", req.Ticker),
		zap.Int64("amount", req.Amount))
	respondJSON(w, http.StatusOK, Ok{Success: true})
}

// decodeBalanceChange parses and validates the shared deposit/withdraw body.
func (s *Server) decodeBalanceChange(w http.ResponseWriter, r *http.Request) (BalanceChangeRequest, bool) {
	var req BalanceChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}

	if _, err := s.users.Get(req.UserID); err != nil {
		respondError(w, http.StatusNotFound, "user not found", "")
		return req, false
	}
	if req.Ticker != s.engine.CashAsset() && !s.insts.Exists(req.Ticker) {
		respondError(w, http.StatusNotFound, "instrument not found", "")
		return req, false
	}

	return req, true
}

func (s *Server) handleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req InstrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	inst := instrument.Instrument{Ticker: req.Ticker, Name: req.Name}
	if err := s.insts.Register(inst); err != nil {
		respondError(w, http.StatusBadRequest, "instrument rejected", err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.SaveInstrument(inst); err != nil {
			s.log.Warn("persist instrument failed", zap.String("ticker", inst.Ticker), zap.Error(err))
		}
	}

	s.log.Info("instrument listed", zap.String("ticker", inst.Ticker), zap.String("name", inst.Name))
	respondJSON(w, http.StatusOK, Ok{Success: true})
}

func (s *Server) handleDeleteInstrument(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	if err := s.insts.Remove(ticker); err != nil {
		respondError(w, http.StatusNotFound, "instrument not found", "")
		return
	}

	if s.store != nil {
		if err := s.store.DeleteInstrument(ticker); err != nil {
			s.log.Warn("delete instrument failed", zap.String("ticker", ticker), zap.Error(err))
		}
	}

	s.log.Info("instrument delisted", zap.String("ticker", ticker))
	respondJSON(w, http.StatusOK, Ok{Success: true})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	u, err := s.users.Delete(userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found", "")
		return
	}

	if s.store != nil {
		if err := s.store.DeleteUser(userID); err != nil {
			s.log.Warn("delete user failed", zap.String("user", userID), zap.Error(err))
		}
	}

	s.log.Info("user deleted", zap.String("user", userID))
	respondJSON(w, http.StatusOK, userInfo(u))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (engine.Notifier)
// ==============================

// TradeExecuted broadcasts an executed trade on trades:<ticker>.
func (s *Server) TradeExecuted(tx txlog.Transaction) {
	s.hub.BroadcastToChannel("trades:"+tx.Ticker, TradeUpdate{
		Type:      "trade",
		Ticker:    tx.Ticker,
		Amount:    tx.Amount,
		Price:     tx.Price,
		Timestamp: tx.Timestamp,
	})
}

// BookChanged broadcasts a fresh depth snapshot on orderbook:<ticker>.
func (s *Server) BookChanged(ticker string) {
	bids, asks, err := s.engine.Depth(ticker, defaultDepthLevels)
	if err != nil {
		return
	}

	s.hub.BroadcastToChannel("orderbook:"+ticker, OrderbookUpdate{
		Type:      "orderbook",
		Ticker:    ticker,
		BidLevels: toPriceLevels(bids),
		AskLevels: toPriceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func userInfo(u user.User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Role: string(u.Role), APIKey: u.APIKey}
}

func orderInfo(o *order.Order) OrderInfo {
	body := OrderBody{
		Direction: o.Direction.String(),
		Ticker:    o.Ticker,
		Qty:       o.Qty,
	}
	if o.Kind == order.Limit {
		price := o.Price
		body.Price = &price
	}
	return OrderInfo{
		ID:        o.ID,
		Status:    o.Status.String(),
		UserID:    o.UserID,
		Timestamp: o.Timestamp,
		Body:      body,
		Filled:    o.Filled,
	}
}

func toPriceLevels(levels []book.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Qty: l.Qty}
	}
	return out
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// respondEngineError maps engine sentinel errors onto HTTP status codes.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrOrderNotFound), errors.Is(err, engine.ErrInstrumentNotFound):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrNotCancellable),
		errors.Is(err, engine.ErrInsufficientLiquidity),
		errors.Is(err, ledger.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, "rejected", err.Error())
	default:
		s.log.Error("internal error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	respondJSON(w, status, ErrorResponse{Error: errMsg, Message: message})
}
