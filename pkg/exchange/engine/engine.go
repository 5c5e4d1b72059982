// Package engine orchestrates order intake: validation, feasibility
// pre-checks, the price-time priority match loop, and the atomic commit of
// ledger, book, registry and transaction-log effects.
//
// Concurrency model: one submission lock per instrument, held across the
// whole book-walk-and-commit sequence, so matching behaves as a single
// logical writer per instrument. Cancellations take the same lock, which
// resolves any cancel-versus-match race by full ordering rather than flags.
// Read paths (depth, balances, order lookup, history) only take the
// components' read locks and always observe committed state.
package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/book"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/ledger"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/registry"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/txlog"
	"github.com/voodoo-o/toy-exchange/pkg/storage"
	"github.com/voodoo-o/toy-exchange/pkg/util"
)

// MaxDepthLevels caps depth snapshots regardless of the caller's request.
const MaxDepthLevels = 25

// Notifier receives post-commit events. Implemented by the API layer to
// stream trades and book updates over WebSocket.
type Notifier interface {
	TradeExecuted(tx txlog.Transaction)
	BookChanged(ticker string)
}

// Options wires the engine's collaborators. Nil components get in-memory
// defaults; Store and Logger are optional.
type Options struct {
	CashAsset   string
	Ledger      *ledger.Ledger
	Instruments *instrument.Registry
	Orders      *registry.Registry
	Trades      *txlog.Log
	Store       *storage.Store
	Clock       util.Clock
	Logger      *zap.Logger
}

// Engine is the matching core.
type Engine struct {
	cash  string
	clock util.Clock
	log   *zap.Logger

	ledger      *ledger.Ledger
	instruments *instrument.Registry
	orders      *registry.Registry
	trades      *txlog.Log
	store       *storage.Store
	notifier    Notifier

	mu    sync.Mutex // guards books and locks maps
	books map[string]*book.Book
	locks map[string]*sync.Mutex
}

func New(opts Options) *Engine {
	if opts.CashAsset == "" {
		opts.CashAsset = "RUB"
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.New()
	}
	if opts.Instruments == nil {
		opts.Instruments = instrument.NewRegistry()
	}
	if opts.Orders == nil {
		opts.Orders = registry.New()
	}
	if opts.Trades == nil {
		opts.Trades = txlog.New()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		cash:        opts.CashAsset,
		clock:       opts.Clock,
		log:         opts.Logger,
		ledger:      opts.Ledger,
		instruments: opts.Instruments,
		orders:      opts.Orders,
		trades:      opts.Trades,
		store:       opts.Store,
		books:       make(map[string]*book.Book),
		locks:       make(map[string]*sync.Mutex),
	}
}

// SetNotifier installs the post-commit event sink. Call before serving.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// CashAsset returns the asset orders are settled in.
func (e *Engine) CashAsset() string { return e.cash }

func (e *Engine) bookFor(ticker string) *book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[ticker]
	if !ok {
		b = book.New()
		e.books[ticker] = b
	}
	return b
}

func (e *Engine) lockFor(ticker string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		e.locks[ticker] = l
	}
	return l
}

// plannedLeg is one trade of the staged match plan.
type plannedLeg struct {
	maker *order.Order
	qty   int64
	price int64
}

// stage tracks effective balances during planning: committed balance plus
// the deltas of trades planned so far. Nothing touches the ledger until the
// whole plan commits.
type stage struct {
	ledger  *ledger.Ledger
	overlay map[[2]string]int64
	entries []ledger.Entry
}

func newStage(l *ledger.Ledger) *stage {
	return &stage{ledger: l, overlay: make(map[[2]string]int64)}
}

func (s *stage) available(userID, asset string) int64 {
	return s.ledger.Read(userID, asset) + s.overlay[[2]string{userID, asset}]
}

// apply stages one signed delta. Debits that would drive the effective
// balance negative are refused without staging anything.
func (s *stage) apply(userID, asset string, delta int64) bool {
	if s.available(userID, asset)+delta < 0 {
		return false
	}
	s.overlay[[2]string{userID, asset}] += delta
	s.entries = append(s.entries, ledger.Entry{UserID: userID, Asset: asset, Delta: delta})
	return true
}

// unapply rolls back the last n staged entries (one aborted trade's legs).
func (s *stage) unapply(n int) {
	for i := 0; i < n; i++ {
		last := s.entries[len(s.entries)-1]
		s.overlay[[2]string{last.UserID, last.Asset}] -= last.Delta
		s.entries = s.entries[:len(s.entries)-1]
	}
}

// Submit validates, pre-checks and executes one incoming order, returning
// the final committed order state.
//
// Limit orders must be funded for their full quantity at submission and rest
// any unfilled remainder. Market orders are all-or-nothing: either the whole
// quantity is filled and paid for, or the submission is rejected with zero
// side effects.
func (e *Engine) Submit(userID, ticker string, dir order.Direction, kind order.Kind, qty, price int64) (*order.Order, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: qty must be positive, got %d", ErrValidation, qty)
	}
	switch kind {
	case order.Limit:
		if price <= 0 {
			return nil, fmt.Errorf("%w: limit price must be positive, got %d", ErrValidation, price)
		}
		// The notional must fit in int64: an overflowing qty*price would turn
		// the funding pre-check and the cash legs into signed garbage. Market
		// orders need no guard of their own, every leg is priced by a resting
		// maker that already passed this check.
		if qty > math.MaxInt64/price {
			return nil, fmt.Errorf("%w: notional %d x %d overflows", ErrValidation, qty, price)
		}
	case order.Market:
		if price != 0 {
			return nil, fmt.Errorf("%w: market orders carry no price", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown order kind", ErrValidation)
	}
	if dir != order.Buy && dir != order.Sell {
		return nil, fmt.Errorf("%w: unknown direction", ErrValidation)
	}
	if ticker == e.cash {
		return nil, fmt.Errorf("%w: cannot trade the cash asset %s", ErrValidation, e.cash)
	}
	if !e.instruments.Exists(ticker) {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, ticker)
	}

	lock := e.lockFor(ticker)
	lock.Lock()
	defer lock.Unlock()

	bk := e.bookFor(ticker)

	incoming := &order.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Ticker:    ticker,
		Direction: dir,
		Kind:      kind,
		Qty:       qty,
		Price:     price,
		Status:    order.New,
		Timestamp: e.clock.Now().UnixMilli(),
	}

	// Feasibility pre-check: the submitter must be able to deliver their
	// side of a full fill before anything is mutated.
	switch {
	case kind == order.Limit && dir == order.Buy:
		if have := e.ledger.Read(userID, e.cash); have < qty*price {
			return nil, fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientBalance, qty*price, e.cash, have)
		}
	case dir == order.Sell: // limit and market sells both deliver the asset
		if have := e.ledger.Read(userID, ticker); have < qty {
			return nil, fmt.Errorf("%w: need %d %s, have %d", ErrInsufficientBalance, qty, ticker, have)
		}
	}
	// Market buys are checked against actual cost while planning below.

	plan, st, err := e.planMatch(bk, incoming)
	if err != nil {
		return nil, err
	}

	return e.commit(bk, incoming, plan, st)
}

// planMatch walks the eligible counter side in price-time priority and
// stages every trade leg without mutating anything. A maker that cannot
// deliver its side is skipped; the incoming side failing a leg aborts.
//
// A skipped maker stays resting, so the no-crossed-book property holds only
// among fundable makers: a remainder resting past an underfunded counter
// order can leave the sides nominally crossed until that maker is funded,
// filled through, or cancelled.
func (e *Engine) planMatch(bk *book.Book, incoming *order.Order) ([]plannedLeg, *stage, error) {
	counters := bk.Counters(incoming.Direction, incoming.Price, incoming.Kind == order.Market)
	st := newStage(e.ledger)

	remaining := incoming.Qty
	var plan []plannedLeg

	for _, maker := range counters {
		if remaining == 0 {
			break
		}
		tradeQty := min(remaining, maker.Remaining())
		if tradeQty <= 0 {
			continue
		}
		tradePrice := maker.Price // resting order always dictates price
		cost := tradeQty * tradePrice

		var buyer, seller string
		if incoming.Direction == order.Buy {
			buyer, seller = incoming.UserID, maker.UserID
		} else {
			buyer, seller = maker.UserID, incoming.UserID
		}

		// Debits first, credits after: a trade must never be funded by its
		// own proceeds.
		staged := 0
		ok := true
		for _, leg := range []ledger.Entry{
			{UserID: buyer, Asset: e.cash, Delta: -cost},
			{UserID: seller, Asset: incoming.Ticker, Delta: -tradeQty},
			{UserID: seller, Asset: e.cash, Delta: cost},
			{UserID: buyer, Asset: incoming.Ticker, Delta: tradeQty},
		} {
			if !st.apply(leg.UserID, leg.Asset, leg.Delta) {
				failedIncoming := leg.UserID == incoming.UserID
				st.unapply(staged)
				if failedIncoming {
					if incoming.Kind == order.Market && incoming.Direction == order.Buy {
						return nil, nil, fmt.Errorf("%w: cannot cover market buy of %d %s",
							ErrInsufficientBalance, incoming.Qty, incoming.Ticker)
					}
					// Pre-checks guarantee the incoming side can deliver;
					// reaching here is a bug.
					return nil, nil, fmt.Errorf("%w: %s cannot deliver %s leg",
						ErrInternalInvariant, leg.UserID, leg.Asset)
				}
				ok = false
				break
			}
			staged++
		}
		if !ok {
			e.log.Debug("skipping underfunded maker",
				zap.String("order_id", maker.ID), zap.String("ticker", incoming.Ticker))
			continue
		}

		plan = append(plan, plannedLeg{maker: maker, qty: tradeQty, price: tradePrice})
		remaining -= tradeQty
	}

	if incoming.Kind == order.Market && remaining > 0 {
		return nil, nil, fmt.Errorf("%w: market order for %d %s, only %d available",
			ErrInsufficientLiquidity, incoming.Qty, incoming.Ticker, incoming.Qty-remaining)
	}

	return plan, st, nil
}

// commit applies a planned match as one atomic unit: ledger batch first
// (all-or-nothing), then book mutations, transaction records and registry
// snapshots, all while the instrument lock is held.
func (e *Engine) commit(bk *book.Book, incoming *order.Order, plan []plannedLeg, st *stage) (*order.Order, error) {
	if len(st.entries) > 0 {
		if err := e.ledger.ApplyBatch(st.entries); err != nil {
			// The plan validated against committed balances under this
			// instrument's lock; only a concurrent non-trade mutation
			// (admin withdrawal) can get here. Nothing was applied, so the
			// race surfaces as an ordinary funding rejection.
			e.log.Warn("balance changed during matching", zap.Error(err))
			return nil, fmt.Errorf("%w: balance changed during matching: %v", ErrInsufficientBalance, err)
		}
	}

	var filled int64
	fills := make([]book.Fill, 0, len(plan))
	for _, leg := range plan {
		fills = append(fills, book.Fill{MakerID: leg.maker.ID, Qty: leg.qty})
		filled += leg.qty
	}

	incoming.Filled = filled
	incoming.SyncStatus()

	var resting *order.Order
	if incoming.Kind == order.Limit && incoming.Remaining() > 0 {
		resting = incoming
	}
	touched := bk.Apply(fills, resting)

	txs := make([]txlog.Transaction, 0, len(plan))
	for _, leg := range plan {
		buyer, seller := incoming.UserID, leg.maker.UserID
		if incoming.Direction == order.Sell {
			buyer, seller = leg.maker.UserID, incoming.UserID
		}
		tx := txlog.Transaction{
			ID:        uuid.NewString(),
			Ticker:    incoming.Ticker,
			Amount:    leg.qty,
			Price:     leg.price,
			BuyerID:   buyer,
			SellerID:  seller,
			Timestamp: incoming.Timestamp,
		}
		e.trades.Append(tx)
		txs = append(txs, tx)
	}

	e.orders.Put(append(touched, incoming)...)
	e.persist(incoming, touched, txs, st.entries)

	e.log.Info("order processed",
		zap.String("order_id", incoming.ID),
		zap.String("ticker", incoming.Ticker),
		zap.String("direction", incoming.Direction.String()),
		zap.String("status", incoming.Status.String()),
		zap.Int64("filled", incoming.Filled),
		zap.Int("trades", len(txs)))

	if e.notifier != nil {
		for _, tx := range txs {
			e.notifier.TradeExecuted(tx)
		}
		if len(txs) > 0 || resting != nil {
			e.notifier.BookChanged(incoming.Ticker)
		}
	}

	return incoming.Clone(), nil
}

// persist writes committed state behind the in-memory commit. Store errors
// are logged and never unwind matching.
func (e *Engine) persist(incoming *order.Order, touched []*order.Order, txs []txlog.Transaction, entries []ledger.Entry) {
	if e.store == nil {
		return
	}

	if err := e.store.SaveOrder(incoming); err != nil {
		e.log.Warn("persist order", zap.String("order_id", incoming.ID), zap.Error(err))
	}
	for _, o := range touched {
		if err := e.store.SaveOrder(o); err != nil {
			e.log.Warn("persist order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	for _, tx := range txs {
		if err := e.store.SaveTrade(tx); err != nil {
			e.log.Warn("persist trade", zap.String("tx_id", tx.ID), zap.Error(err))
		}
	}

	seen := make(map[[2]string]bool)
	for _, entry := range entries {
		k := [2]string{entry.UserID, entry.Asset}
		if seen[k] {
			continue
		}
		seen[k] = true
		if err := e.store.SaveBalance(entry.UserID, entry.Asset, e.ledger.Read(entry.UserID, entry.Asset)); err != nil {
			e.log.Warn("persist balance", zap.String("user_id", entry.UserID), zap.Error(err))
		}
	}
}

// Cancel transitions a NEW, unfilled order to CANCELLED and removes it from
// the match-eligible set. No balance is touched. Orders with any fill
// progress are never cancellable.
func (e *Engine) Cancel(orderID, requesterID string) error {
	rec, ok := e.orders.Get(orderID)
	if !ok || rec.UserID != requesterID {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	lock := e.lockFor(rec.Ticker)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a match may have progressed the order before
	// we acquired it.
	rec, ok = e.orders.Get(orderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if rec.Status != order.New || rec.Filled > 0 {
		return fmt.Errorf("%w: %s is %s with %d filled", ErrNotCancellable,
			orderID, rec.Status, rec.Filled)
	}

	live, removed := e.bookFor(rec.Ticker).Remove(orderID)
	if !removed {
		live = rec
	}
	live.Status = order.Cancelled
	e.orders.Put(live)

	if e.store != nil {
		if err := e.store.SaveOrder(live); err != nil {
			e.log.Warn("persist order", zap.String("order_id", live.ID), zap.Error(err))
		}
	}

	e.log.Info("order cancelled",
		zap.String("order_id", orderID), zap.String("ticker", rec.Ticker))

	if e.notifier != nil {
		e.notifier.BookChanged(rec.Ticker)
	}
	return nil
}

// Order returns the committed state of one order.
func (e *Engine) Order(orderID string) (*order.Order, error) {
	o, ok := e.orders.Get(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, nil
}

// OrdersByUser lists a user's orders, oldest first.
func (e *Engine) OrdersByUser(userID string) []*order.Order {
	return e.orders.ListByUser(userID)
}

// Depth returns the aggregated L2 book, at most MaxDepthLevels per side.
func (e *Engine) Depth(ticker string, limit int) (bids, asks []book.Level, err error) {
	if !e.instruments.Exists(ticker) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, ticker)
	}
	if limit <= 0 || limit > MaxDepthLevels {
		limit = MaxDepthLevels
	}
	bids, asks = e.bookFor(ticker).Depth(limit)
	return bids, asks, nil
}

// Transactions returns trade history, newest first. History survives
// instrument deletion, so the ticker is not checked for existence.
func (e *Engine) Transactions(ticker string, limit int, participant string) []txlog.Transaction {
	return e.trades.Query(ticker, limit, participant)
}

// Balances returns a snapshot of all of a user's balances.
func (e *Engine) Balances(userID string) map[string]int64 {
	return e.ledger.Balances(userID)
}

// Deposit credits a balance. Admin collaborator operation.
func (e *Engine) Deposit(userID, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive, got %d", ErrValidation, amount)
	}
	if err := e.ledger.Adjust(userID, asset, amount); err != nil {
		return err
	}
	e.persistBalance(userID, asset)
	return nil
}

// Withdraw debits a balance, failing on insufficient funds. Admin
// collaborator operation.
func (e *Engine) Withdraw(userID, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal must be positive, got %d", ErrValidation, amount)
	}
	if err := e.ledger.Adjust(userID, asset, -amount); err != nil {
		return err
	}
	e.persistBalance(userID, asset)
	return nil
}

func (e *Engine) persistBalance(userID, asset string) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveBalance(userID, asset, e.ledger.Read(userID, asset)); err != nil {
		e.log.Warn("persist balance", zap.String("user_id", userID), zap.Error(err))
	}
}

// RestoreOrder re-seeds one persisted order at startup: the record always
// returns to the registry, open limit orders also return to the book.
// Orders must be restored oldest first to preserve time priority.
func (e *Engine) RestoreOrder(o *order.Order) {
	e.orders.Put(o)
	if o.Kind == order.Limit && o.IsOpen() {
		e.bookFor(o.Ticker).Insert(o.Clone())
	}
}
