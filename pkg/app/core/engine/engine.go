package engine

import (
	"math"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Engine matches orders for a single symbol with price-time priority.
//
// Submit and Cancel run under the write lock, so every call is applied as a
// whole: all of its fills and its resting remainder become visible together.
// Readers take the read lock and only ever see copies.
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	book     *orderbook.OrderBook
	recorder Recorder
	clock    util.Clock

	lastOrderID uint64
	lastTradeID uint64
	lastSeq     uint64
	lastTs      int64 // fill and order timestamps never go backwards
	lastPrice   int64
}

type Option func(*Engine)

// WithClock overrides the wall clock used to stamp orders and fills.
func WithClock(c util.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine for cfg.Symbol. Fills are handed to recorder in
// execution order; recorder may be nil.
func New(cfg Config, recorder Recorder, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		book:     orderbook.NewOrderBook(),
		recorder: recorder,
		clock:    util.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Symbol() string { return e.cfg.Symbol }
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) validate(req NewOrderRequest) error {
	if req.Symbol != e.cfg.Symbol {
		return invalid("symbol %q does not match book %q", req.Symbol, e.cfg.Symbol)
	}
	if !req.Side.Valid() {
		return invalid("malformed side %d", req.Side)
	}
	if !req.Type.Valid() {
		return invalid("malformed order type %d", req.Type)
	}
	if req.OwnerID == "" {
		return invalid("owner id cannot be empty")
	}
	if req.Qty <= 0 {
		return invalid("quantity must be positive, got %d", req.Qty)
	}
	if req.Type == orderbook.Market {
		if req.Price < 0 {
			return invalid("market price cap cannot be negative, got %d", req.Price)
		}
	} else if req.Price <= 0 {
		return invalid("price must be positive, got %d", req.Price)
	} else if req.Qty > math.MaxInt64/req.Price {
		// fills trade at resting prices, so this bounds every fill's notional
		return invalid("notional of %d x %d overflows", req.Price, req.Qty)
	}
	if req.Price%e.cfg.TickSize != 0 {
		return invalid("price %d is not a multiple of tick size %d", req.Price, e.cfg.TickSize)
	}
	if req.Qty%e.cfg.LotSize != 0 {
		return invalid("quantity %d is not a multiple of lot size %d", req.Qty, e.cfg.LotSize)
	}
	if req.Qty < e.cfg.MinOrderQty {
		return invalid("order size %d below minimum %d", req.Qty, e.cfg.MinOrderQty)
	}
	if e.cfg.MaxOrderQty > 0 && req.Qty > e.cfg.MaxOrderQty {
		return invalid("order size %d exceeds maximum %d", req.Qty, e.cfg.MaxOrderQty)
	}
	return nil
}

// now returns a timestamp that never precedes the previous one.
func (e *Engine) now() int64 {
	ts := e.clock.Now().UnixNano()
	if ts < e.lastTs {
		ts = e.lastTs
	}
	e.lastTs = ts
	return ts
}

// Submit validates req, matches it against the opposing side and rests or
// discards the remainder according to its type.
func (e *Engine) Submit(req NewOrderRequest) (SubmitResult, error) {
	if err := e.validate(req); err != nil {
		return SubmitResult{ClientID: req.ClientID, Status: StatusRejected}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastOrderID++
	e.lastSeq++
	taker := &orderbook.Order{
		ID:           e.lastOrderID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Price:        req.Price,
		OriginalQty:  req.Qty,
		RemainingQty: req.Qty,
		Timestamp:    e.now(),
		Sequence:     e.lastSeq,
		OwnerID:      req.OwnerID,
		ClientID:     req.ClientID,
	}
	res := SubmitResult{OrderID: taker.ID, ClientID: req.ClientID, Fills: []orderbook.Fill{}}

	limit, ok := e.limitPrice(taker)
	discard := false
	if ok {
		discard = e.match(taker, limit, &res)
	}

	res.RemainingQty = taker.RemainingQty
	switch {
	case taker.RemainingQty == 0 && res.FilledQty == taker.OriginalQty:
		res.Status = StatusFilled
	case taker.RemainingQty > 0 && taker.Type == orderbook.Limit && !discard:
		if err := e.book.Add(taker); err != nil {
			// ids are engine-assigned, so this means the book is corrupt
			panic(errors.Wrapf(err, "rest order %d", taker.ID))
		}
		res.RestingOrderID = taker.ID
		res.Status = StatusResting
	case res.FilledQty > 0:
		res.Status = StatusPartiallyFilled
	default:
		res.Status = StatusUnfilled
	}
	return res, nil
}

// limitPrice returns the worst price the taker may trade at. For market
// orders it is derived from the best opposing price and the slippage bound;
// ok is false when a market order finds no opposing liquidity.
func (e *Engine) limitPrice(o *orderbook.Order) (int64, bool) {
	if o.Type != orderbook.Market {
		return o.Price, true
	}
	best, ok := e.book.Side(o.Side.Opposite()).Best()
	if !ok {
		return 0, false
	}
	return marketBound(best.Price, o.Side, o.Price, e.cfg.SlippageBps, e.cfg.TickSize), true
}

// marketBound applies the slippage bound to the best opposing price, rounded
// to the tick grid in the taker's disfavour, then tightens it with an
// explicit price cap when one is given.
func marketBound(best int64, side orderbook.Side, capPrice, slippageBps, tick int64) int64 {
	slip := decimal.NewFromInt(slippageBps).Div(bpsDenominator)
	ticks := decimal.NewFromInt(tick)
	var bound int64
	if side == orderbook.Buy {
		raw := decimal.NewFromInt(best).Mul(decimal.NewFromInt(1).Add(slip))
		bound = raw.Div(ticks).Floor().Mul(ticks).IntPart()
		if capPrice > 0 && capPrice < bound {
			bound = capPrice
		}
		return bound
	}
	raw := decimal.NewFromInt(best).Mul(decimal.NewFromInt(1).Sub(slip))
	bound = raw.Div(ticks).Ceil().Mul(ticks).IntPart()
	if bound < tick {
		bound = tick
	}
	if capPrice > bound {
		bound = capPrice
	}
	return bound
}

func crosses(side orderbook.Side, limit, resting int64) bool {
	if side == orderbook.Buy {
		return limit >= resting
	}
	return limit <= resting
}

// fee returns price*qty*bps/10000 truncated toward zero.
func fee(price, qty, bps int64) int64 {
	if bps == 0 {
		return 0
	}
	return decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(qty)).
		Mul(decimal.NewFromInt(bps)).
		Div(bpsDenominator).
		Truncate(0).
		IntPart()
}

// match walks the opposing side while it crosses limit. It reports true when
// the self-trade policy requires the taker's remainder to be discarded.
func (e *Engine) match(taker *orderbook.Order, limit int64, res *SubmitResult) bool {
	opp := e.book.Side(taker.Side.Opposite())
	for taker.RemainingQty > 0 {
		level, ok := opp.Best()
		if !ok || !crosses(taker.Side, limit, level.Price) {
			return false
		}
		maker := level.Front()
		qty := min(taker.RemainingQty, maker.RemainingQty)

		if maker.OwnerID == taker.OwnerID {
			switch e.cfg.SelfTrade {
			case CancelProvide:
				e.book.Remove(maker.ID)
				res.CanceledOrderIDs = append(res.CanceledOrderIDs, maker.ID)
			case CancelTake:
				return true
			default:
				taker.RemainingQty -= qty
				e.book.Reduce(maker.ID, qty)
				res.SelfTradeQty += qty
			}
			continue
		}

		price := level.Price // maker sets the trade price
		e.lastTradeID++
		fill := orderbook.Fill{
			ID:           e.lastTradeID,
			Symbol:       e.cfg.Symbol,
			TakerOrderID: taker.ID,
			MakerOrderID: maker.ID,
			TakerOwnerID: taker.OwnerID,
			MakerOwnerID: maker.OwnerID,
			Price:        price,
			Qty:          qty,
			Timestamp:    e.now(),
			TakerSide:    taker.Side,
			TakerFee:     fee(price, qty, e.cfg.TakerFeeBps),
			MakerFee:     fee(price, qty, e.cfg.MakerFeeBps),
		}
		taker.RemainingQty -= qty
		e.book.Reduce(maker.ID, qty)
		e.lastPrice = price

		res.Fills = append(res.Fills, fill)
		res.FilledQty += qty
		if e.recorder != nil {
			e.recorder.Record(fill)
		}
	}
	return false
}

// Cancel removes a resting order. A second cancel of the same id fails with
// ErrOrderNotFound.
func (e *Engine) Cancel(req CancelRequest) (CancelResult, error) {
	if req.Symbol != "" && req.Symbol != e.cfg.Symbol {
		return CancelResult{}, errors.Wrapf(ErrOrderNotFound, "order %d on %s", req.OrderID, req.Symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.book.Remove(req.OrderID)
	if !ok {
		return CancelResult{}, errors.Wrapf(ErrOrderNotFound, "order %d", req.OrderID)
	}
	return CancelResult{Order: *o}, nil
}

// Snapshot returns up to depth aggregated levels per side (depth <= 0 for all)
// taken under a single read lock.
func (e *Engine) Snapshot(depth int) orderbook.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Snapshot(depth)
}

// Order returns a copy of a resting order.
func (e *Engine) Order(id uint64) (orderbook.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.book.Get(id)
	if !ok {
		return orderbook.Order{}, false
	}
	return *o, true
}

// OpenOrders returns copies of the owner's resting orders in book order.
func (e *Engine) OpenOrders(owner string) []orderbook.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []orderbook.Order
	for _, o := range e.book.Orders() {
		if o.OwnerID == owner {
			out = append(out, o)
		}
	}
	return out
}

// Orders returns copies of every resting order for checkpointing.
func (e *Engine) Orders() []orderbook.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Orders()
}

// OpenOrderCount returns the number of resting orders.
func (e *Engine) OpenOrderCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Len()
}

// LastPrice returns the most recent trade price, or 0 before the first fill.
func (e *Engine) LastPrice() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPrice
}

// Check runs the book's invariant checks under the read lock.
func (e *Engine) Check() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Check()
}

// Counters are the sequences an engine must resume from after a restart.
// Every fill executed later has an id above LastTradeID and a timestamp at
// or after LastTimestamp.
type Counters struct {
	LastOrderID   uint64
	LastTradeID   uint64
	LastTimestamp int64
}

// Counters returns the last assigned ids and timestamp.
func (e *Engine) Counters() Counters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters()
}

func (e *Engine) counters() Counters {
	return Counters{LastOrderID: e.lastOrderID, LastTradeID: e.lastTradeID, LastTimestamp: e.lastTs}
}

// Checkpoint returns the resting orders and the counters they correspond
// to, read under one lock.
func (e *Engine) Checkpoint() ([]orderbook.Order, Counters) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Orders(), e.counters()
}

// Restore rebuilds an empty book from checkpointed orders. Queue position is
// taken from Sequence, and the id counters continue after both c and the
// largest restored values so new ids never collide.
func (e *Engine) Restore(orders []orderbook.Order, c Counters) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.book.Len() > 0 {
		return ErrRestoreNonEmpty
	}
	sorted := append([]orderbook.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	book := orderbook.NewOrderBook()
	var maxID, maxSeq uint64
	var maxTs int64
	for i := range sorted {
		o := sorted[i]
		if o.Symbol != e.cfg.Symbol {
			return invalid("restored order %d belongs to %q", o.ID, o.Symbol)
		}
		if err := book.Add(&o); err != nil {
			return errors.Wrap(err, "restore")
		}
		maxID = max(maxID, o.ID)
		maxSeq = max(maxSeq, o.Sequence)
		maxTs = max(maxTs, o.Timestamp)
	}
	if err := book.Check(); err != nil {
		return errors.Wrap(err, "restore")
	}

	e.book = book
	e.lastOrderID = max(e.lastOrderID, maxID, c.LastOrderID)
	e.lastSeq = max(e.lastSeq, maxSeq, c.LastOrderID)
	e.lastTs = max(e.lastTs, maxTs, c.LastTimestamp)
	e.lastTradeID = max(e.lastTradeID, c.LastTradeID)
	return nil
}

// Replay applies fills executed after the restored checkpoint, oldest
// first. Fills at or below the last trade id are skipped. Each applied fill
// reduces its maker if still resting and advances the id counters past its
// trade and order ids. It returns the number of fills applied.
//
// Orders that rested, self-trade reductions and cancels after the
// checkpoint leave no fill behind and are not recovered.
func (e *Engine) Replay(fills []orderbook.Fill) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	for _, f := range fills {
		if f.Symbol != e.cfg.Symbol || f.ID <= e.lastTradeID {
			continue
		}
		if maker, ok := e.book.Get(f.MakerOrderID); ok {
			e.book.Reduce(maker.ID, min(f.Qty, maker.RemainingQty))
		}
		e.lastTradeID = f.ID
		e.lastOrderID = max(e.lastOrderID, f.TakerOrderID, f.MakerOrderID)
		e.lastSeq = max(e.lastSeq, e.lastOrderID)
		e.lastTs = max(e.lastTs, f.Timestamp)
		e.lastPrice = f.Price
		applied++
	}
	return applied
}

// LastTradeID returns the id of the most recent fill.
func (e *Engine) LastTradeID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTradeID
}
