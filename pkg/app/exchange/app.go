// Package exchange routes requests to per-symbol markets and fans their
// results out to storage, the fill stream, metrics and subscribers.
package exchange

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbook/pkg/app/core/engine"
	"github.com/uhyunpark/hyperbook/pkg/app/core/market"
	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/app/core/view"
	"github.com/uhyunpark/hyperbook/pkg/broker"
	"github.com/uhyunpark/hyperbook/pkg/metrics"
	"github.com/uhyunpark/hyperbook/pkg/storage"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

// ErrCheckpointMismatch means a restored book does not hash to the value
// recorded with its checkpoint.
var ErrCheckpointMismatch = errors.New("checkpoint hash mismatch")

type Options struct {
	Store     storage.Store
	Publisher broker.Publisher
	Journal   storage.Journal
	Metrics   *metrics.Metrics
	Logger    *zap.SugaredLogger
	Clock     util.Clock

	// StatsWindow is the default window for Stats and how much trade
	// history Restore reloads into memory.
	StatsWindow time.Duration
	// PublishBuffer bounds fills waiting for the publisher.
	PublishBuffer int
}

type (
	TradeHook func(symbol string, fills []orderbook.Fill)
	BookHook  func(symbol string)
)

type App struct {
	registry  *market.Registry
	store     storage.Store
	publisher broker.Publisher
	journal   storage.Journal
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	clock     util.Clock
	window    time.Duration

	outbox chan []orderbook.Fill

	// sequencers holds one *sync.Mutex per symbol, held from matching until
	// the results reach every sink so sinks see execution order.
	sequencers sync.Map

	hooksMu sync.RWMutex
	onTrade []TradeHook
	onBook  []BookHook
}

func New(registry *market.Registry, opts Options) *App {
	if opts.Store == nil {
		opts.Store = storage.NewInMemoryStore()
	}
	if opts.Publisher == nil {
		opts.Publisher = broker.NopPublisher{}
	}
	if opts.Journal == nil {
		opts.Journal = storage.NewNopJournal()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	if opts.PublishBuffer <= 0 {
		opts.PublishBuffer = 1024
	}
	return &App{
		registry:  registry,
		store:     opts.Store,
		publisher: opts.Publisher,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		clock:     opts.Clock,
		window:    opts.StatsWindow,
		outbox:    make(chan []orderbook.Fill, opts.PublishBuffer),
	}
}

func (a *App) Registry() *market.Registry { return a.registry }
func (a *App) StatsWindow() time.Duration { return a.window }

// OnTrade registers fn to run after every submit that produced fills.
func (a *App) OnTrade(fn TradeHook) {
	a.hooksMu.Lock()
	a.onTrade = append(a.onTrade, fn)
	a.hooksMu.Unlock()
}

// OnBookChange registers fn to run after every submit or cancel that
// changed the book.
func (a *App) OnBookChange(fn BookHook) {
	a.hooksMu.Lock()
	a.onBook = append(a.onBook, fn)
	a.hooksMu.Unlock()
}

// Kind maps an error to a stable machine-readable name.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, engine.ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, engine.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, market.ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, market.ErrMarketHalted):
		return "market_halted"
	case errors.Is(err, market.ErrInvalidSymbol):
		return "invalid_symbol"
	default:
		return "internal"
	}
}

func (a *App) sequencer(symbol string) *sync.Mutex {
	mu, _ := a.sequencers.LoadOrStore(symbol, new(sync.Mutex))
	return mu.(*sync.Mutex)
}

// Submit routes req to its market, creating the market on first reference.
func (a *App) Submit(ctx context.Context, requestID string, req engine.NewOrderRequest) (engine.SubmitResult, error) {
	m, created, err := a.registry.GetOrCreate(req.Symbol)
	if err != nil {
		a.metrics.Rejects.WithLabelValues("", Kind(err)).Inc()
		return engine.SubmitResult{ClientID: req.ClientID, Status: engine.StatusRejected}, err
	}
	if created {
		a.log.Infow("market_created", "symbol", m.Symbol, "tick", m.Params.TickSize, "lot", m.Params.LotSize)
	}

	seq := a.sequencer(m.Symbol)
	seq.Lock()
	defer seq.Unlock()

	start := time.Now()
	res, err := m.Submit(req)
	took := time.Since(start)
	if err != nil {
		a.metrics.Rejects.WithLabelValues(m.Symbol, Kind(err)).Inc()
		a.log.Debugw("order_rejected", "request_id", requestID, "symbol", m.Symbol, "owner", req.OwnerID, "err", err)
		return res, err
	}

	var notional float64
	for _, f := range res.Fills {
		notional += float64(f.Notional())
	}
	a.metrics.ObserveSubmit(m.Symbol, req.Type.String(), string(res.Status), len(res.Fills), notional, took)
	a.log.Debugw("order_processed",
		"request_id", requestID,
		"symbol", m.Symbol,
		"order_id", res.OrderID,
		"status", res.Status,
		"fills", len(res.Fills),
		"self_trade_qty", res.SelfTradeQty,
	)

	if len(res.Fills) > 0 {
		if err := a.store.SaveFills(res.Fills); err != nil {
			a.sinkError("store", err, "symbol", m.Symbol, "order_id", res.OrderID)
		}
		a.enqueue(res.Fills)
	}
	a.appendJournal(storage.JournalEntry{
		Time: a.clock.Now(), RequestID: requestID, Kind: "submit", Symbol: m.Symbol, Request: req, Result: res,
	})

	if len(res.Fills) > 0 {
		a.fireTrade(m.Symbol, res.Fills)
	}
	if len(res.Fills) > 0 || res.Resting() || len(res.CanceledOrderIDs) > 0 || res.SelfTradeQty > 0 {
		a.bookChanged(m)
	}
	return res, nil
}

// Cancel removes a resting order from an existing market.
func (a *App) Cancel(ctx context.Context, requestID string, req engine.CancelRequest) (engine.CancelResult, error) {
	m, err := a.registry.Get(req.Symbol)
	if err != nil {
		a.metrics.Cancels.WithLabelValues(req.Symbol, Kind(err)).Inc()
		return engine.CancelResult{}, err
	}
	seq := a.sequencer(m.Symbol)
	seq.Lock()
	defer seq.Unlock()

	res, err := m.Cancel(req.OrderID)
	if err != nil {
		a.metrics.Cancels.WithLabelValues(m.Symbol, Kind(err)).Inc()
		return res, err
	}
	a.metrics.Cancels.WithLabelValues(m.Symbol, "ok").Inc()
	a.log.Debugw("order_canceled", "request_id", requestID, "symbol", m.Symbol, "order_id", req.OrderID)

	a.appendJournal(storage.JournalEntry{
		Time: a.clock.Now(), RequestID: requestID, Kind: "cancel", Symbol: m.Symbol, Request: req, Result: res,
	})
	a.bookChanged(m)
	return res, nil
}

// Market returns an existing market; reads never create markets.
func (a *App) Market(symbol string) (*market.Market, error) {
	return a.registry.Get(symbol)
}

func (a *App) Depth(symbol string, n int) (view.Depth, error) {
	m, err := a.registry.Get(symbol)
	if err != nil {
		return view.Depth{}, err
	}
	return m.View.Depth(n), nil
}

// Trades returns up to limit fills with Timestamp >= since, newest first.
// Fills older than the in-memory history are read from the store.
func (a *App) Trades(symbol string, since int64, limit int) ([]orderbook.Fill, error) {
	m, err := a.registry.Get(symbol)
	if err != nil {
		return nil, err
	}
	out := make([]orderbook.Fill, 0)
	for f := range m.Trades.Query(since, limit) {
		out = append(out, f)
	}
	if limit > 0 && len(out) >= limit {
		return out, nil
	}
	if first, ok := m.Trades.First(); ok && first.Timestamp < since {
		return out, nil
	}
	// the store holds everything in memory too, newest first
	stored, err := a.store.LoadRecentTrades(symbol, limit)
	if err != nil {
		return out, errors.Wrapf(err, "load trades %s", symbol)
	}
	var oldest uint64
	if len(out) > 0 {
		oldest = out[len(out)-1].ID
	}
	for _, f := range stored {
		if f.Timestamp < since || (limit > 0 && len(out) >= limit) {
			break
		}
		if oldest == 0 || f.ID < oldest {
			out = append(out, f)
		}
	}
	return out, nil
}

// Stats summarises the market over window; window <= 0 uses the default.
func (a *App) Stats(symbol string, window time.Duration) (view.Summary, error) {
	m, err := a.registry.Get(symbol)
	if err != nil {
		return view.Summary{}, err
	}
	if window <= 0 {
		window = a.window
	}
	return m.View.Summary(window), nil
}

func (a *App) enqueue(fills []orderbook.Fill) {
	select {
	case a.outbox <- fills:
	default:
		a.sinkError("publisher", errors.New("outbox full"), "dropped", len(fills))
	}
}

// RunPublisher forwards fills to the publisher until ctx is done, then
// drains what is already queued.
func (a *App) RunPublisher(ctx context.Context) {
	publish := func(fills []orderbook.Fill) {
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.publisher.PublishFills(pctx, fills); err != nil {
			a.sinkError("publisher", err, "symbol", fills[0].Symbol, "count", len(fills))
		}
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case fills := <-a.outbox:
					publish(fills)
				default:
					return
				}
			}
		case fills := <-a.outbox:
			publish(fills)
		}
	}
}

func (a *App) appendJournal(e storage.JournalEntry) {
	if err := a.journal.Append(e); err != nil {
		a.sinkError("journal", err, "symbol", e.Symbol, "kind", e.Kind)
	}
}

func (a *App) sinkError(sink string, err error, kv ...interface{}) {
	a.metrics.SinkErrors.WithLabelValues(sink).Inc()
	a.log.Warnw("sink_error", append([]interface{}{"sink", sink, "err", err}, kv...)...)
}

func (a *App) fireTrade(symbol string, fills []orderbook.Fill) {
	a.hooksMu.RLock()
	hooks := a.onTrade
	a.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(symbol, fills)
	}
}

func (a *App) bookChanged(m *market.Market) {
	a.metrics.ObserveBook(m.Symbol, m.Engine.OpenOrderCount(), m.View.Spread())

	a.hooksMu.RLock()
	hooks := a.onBook
	a.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(m.Symbol)
	}
}

// Checkpoint saves the resting orders of every market.
func (a *App) Checkpoint(ctx context.Context) error {
	var errs error
	for _, m := range a.registry.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		orders, counters := m.Engine.Checkpoint()
		cp := storage.BookCheckpoint{
			Symbol:        m.Symbol,
			Status:        m.Status().String(),
			Orders:        orders,
			LastOrderID:   counters.LastOrderID,
			LastTradeID:   counters.LastTradeID,
			LastTimestamp: counters.LastTimestamp,
			TakenAt:       a.clock.Now().UnixNano(),
			Hash:          OrdersHash(orders),
		}
		if err := a.store.SaveBook(cp); err != nil {
			a.sinkError("store", err, "symbol", m.Symbol)
			errs = errors.CombineErrors(errs, err)
			continue
		}
		a.log.Debugw("checkpoint_saved", "symbol", m.Symbol, "orders", len(orders))
	}
	return errs
}

// Restore rebuilds every checkpointed market, replays the fills stored
// after its checkpoint and reloads the trade history inside the stats
// window. Markets with fills but no checkpoint are recreated from their
// fills alone. It must run before any order is submitted.
func (a *App) Restore(ctx context.Context) error {
	booked, err := a.store.BookSymbols()
	if err != nil {
		return errors.Wrap(err, "list checkpoints")
	}
	traded, err := a.store.TradeSymbols()
	if err != nil {
		return errors.Wrap(err, "list traded symbols")
	}
	symbols := append(booked, traded...)
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	since := a.clock.Now().Add(-a.window).UnixNano()
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.restoreMarket(sym, since); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) restoreMarket(sym string, since int64) error {
	cp, ok, err := a.store.LoadBook(sym)
	if err != nil {
		return err
	}
	if ok && OrdersHash(cp.Orders) != cp.Hash {
		return errors.Wrapf(ErrCheckpointMismatch, "%s", sym)
	}
	m, _, err := a.registry.GetOrCreate(sym)
	if err != nil {
		return err
	}
	counters := engine.Counters{LastOrderID: cp.LastOrderID, LastTradeID: cp.LastTradeID, LastTimestamp: cp.LastTimestamp}
	if err := m.Engine.Restore(cp.Orders, counters); err != nil {
		return errors.Wrapf(err, "restore %s", sym)
	}
	if st, err := market.ParseStatus(cp.Status); ok && err == nil && st != market.Active {
		if err := a.registry.UpdateStatus(sym, st); err != nil {
			return err
		}
	}

	// fills after the checkpoint are stamped at or after its last timestamp
	fills, err := a.store.LoadTradesSince(sym, min(since, cp.LastTimestamp))
	if err != nil {
		return errors.Wrapf(err, "load trades %s", sym)
	}
	replayed := m.Engine.Replay(fills)
	i, _ := slices.BinarySearchFunc(fills, since, func(f orderbook.Fill, ts int64) int {
		return cmp.Compare(f.Timestamp, ts)
	})
	m.Trades.Load(fills[i:])

	a.metrics.ObserveBook(sym, m.Engine.OpenOrderCount(), m.View.Spread())
	a.log.Infow("market_restored",
		"symbol", sym,
		"checkpoint", ok,
		"orders", len(cp.Orders),
		"replayed_fills", replayed,
		"trades", len(fills)-i,
		"status", m.Status(),
	)
	return nil
}

// RunCheckpoints checkpoints every interval until ctx is done, then takes a
// final checkpoint.
func (a *App) RunCheckpoints(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := a.Checkpoint(context.Background()); err != nil {
				a.log.Errorw("final_checkpoint_failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := a.Checkpoint(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warnw("checkpoint_failed", "err", err)
			}
		}
	}
}

// Close releases the publisher, journal and store.
func (a *App) Close() error {
	return errors.CombineErrors(
		errors.CombineErrors(a.publisher.Close(), a.journal.Close()),
		a.store.Close(),
	)
}

// OrdersHash is a SHA-256 over every resting order in book order: id,
// side, price and remaining quantity.
func OrdersHash(orders []orderbook.Order) [32]byte {
	h := sha256.New()
	var buf [8]byte
	for _, o := range orders {
		binary.BigEndian.PutUint64(buf[:], o.ID)
		h.Write(buf[:])
		h.Write([]byte{byte(o.Side)})
		binary.BigEndian.PutUint64(buf[:], uint64(o.Price))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(o.RemainingQty))
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
