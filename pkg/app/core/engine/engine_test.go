package engine

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

const sym = "BTC-USDT"

// tb is satisfied by *testing.T, *testing.B and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type fillSink struct {
	mu    sync.Mutex
	fills []orderbook.Fill
}

func (s *fillSink) Record(f orderbook.Fill) {
	s.mu.Lock()
	s.fills = append(s.fills, f)
	s.mu.Unlock()
}

func newEngine(t tb, mutate func(*Config)) (*Engine, *fillSink) {
	t.Helper()
	cfg := DefaultConfig(sym)
	if mutate != nil {
		mutate(&cfg)
	}
	sink := &fillSink{}
	clock := util.NewManualClock(time.Unix(1700000000, 0))
	e, err := New(cfg, sink, WithClock(clock))
	require.NoError(t, err)
	return e, sink
}

func limit(side orderbook.Side, price, qty int64, owner string) NewOrderRequest {
	return NewOrderRequest{Symbol: sym, Side: side, Type: orderbook.Limit, Price: price, Qty: qty, OwnerID: owner}
}

func submit(t tb, e *Engine, req NewOrderRequest) SubmitResult {
	t.Helper()
	res, err := e.Submit(req)
	require.NoError(t, err)
	return res
}

func TestSubmit_PartialFillRestsRemainder(t *testing.T) {
	e, sink := newEngine(t, nil)

	sell := submit(t, e, limit(orderbook.Sell, 100, 10, "alice"))
	assert.Equal(t, uint64(1), sell.OrderID)
	assert.Equal(t, StatusResting, sell.Status)
	assert.Empty(t, sell.Fills)

	buy := submit(t, e, limit(orderbook.Buy, 100, 15, "bob"))
	assert.Equal(t, uint64(2), buy.OrderID)
	require.Len(t, buy.Fills, 1)
	f := buy.Fills[0]
	assert.Equal(t, int64(100), f.Price)
	assert.Equal(t, int64(10), f.Qty)
	assert.Equal(t, uint64(1), f.MakerOrderID)
	assert.Equal(t, uint64(2), f.TakerOrderID)
	assert.Equal(t, orderbook.Buy, f.TakerSide)

	assert.Equal(t, StatusResting, buy.Status)
	assert.Equal(t, uint64(2), buy.RestingOrderID)
	assert.Equal(t, int64(5), buy.RemainingQty)

	o, ok := e.Order(2)
	require.True(t, ok)
	assert.Equal(t, int64(5), o.RemainingQty)
	assert.Equal(t, int64(15), o.OriginalQty)

	snap := e.Snapshot(5)
	assert.Empty(t, snap.Asks)
	assert.Equal(t, []orderbook.Level{{Price: 100, Qty: 5, Orders: 1}}, snap.Bids)

	assert.Equal(t, buy.Fills, sink.fills)
	assert.Equal(t, int64(100), e.LastPrice())
}

func TestCancel_RoundTrip(t *testing.T) {
	e, _ := newEngine(t, nil)
	res := submit(t, e, limit(orderbook.Buy, 99, 3, "alice"))

	out, err := e.Cancel(CancelRequest{Symbol: sym, OrderID: res.OrderID})
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, out.Order.ID)
	assert.Equal(t, int64(3), out.Order.RemainingQty)

	snap := e.Snapshot(5)
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)

	_, err = e.Cancel(CancelRequest{Symbol: sym, OrderID: res.OrderID})
	assert.True(t, errors.Is(err, ErrOrderNotFound))
	_, err = e.Cancel(CancelRequest{Symbol: sym, OrderID: 42})
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestSubmit_TimePriorityWithinLevel(t *testing.T) {
	e, _ := newEngine(t, nil)
	first := submit(t, e, limit(orderbook.Sell, 100, 4, "alice"))
	second := submit(t, e, limit(orderbook.Sell, 100, 4, "carol"))

	res := submit(t, e, limit(orderbook.Buy, 100, 6, "bob"))
	require.Len(t, res.Fills, 2)
	assert.Equal(t, first.OrderID, res.Fills[0].MakerOrderID)
	assert.Equal(t, int64(4), res.Fills[0].Qty)
	assert.Equal(t, second.OrderID, res.Fills[1].MakerOrderID)
	assert.Equal(t, int64(2), res.Fills[1].Qty)
	assert.Equal(t, StatusFilled, res.Status)

	o, ok := e.Order(second.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(2), o.RemainingQty)
}

func TestSubmit_FillsAtMakerPriceBestFirst(t *testing.T) {
	e, _ := newEngine(t, nil)
	submit(t, e, limit(orderbook.Sell, 102, 1, "alice"))
	submit(t, e, limit(orderbook.Sell, 101, 1, "alice"))
	submit(t, e, limit(orderbook.Sell, 105, 1, "alice"))

	res := submit(t, e, limit(orderbook.Buy, 103, 5, "bob"))
	var prices []int64
	for _, f := range res.Fills {
		prices = append(prices, f.Price)
	}
	assert.Equal(t, []int64{101, 102}, prices)
	assert.Equal(t, StatusResting, res.Status)
	assert.Equal(t, int64(3), res.RemainingQty)

	bid, ok := e.Snapshot(1).BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(103), bid)
	ask, _ := e.Snapshot(1).BestAsk()
	assert.Equal(t, int64(105), ask)
}

func TestSubmit_NonCrossingRests(t *testing.T) {
	e, _ := newEngine(t, nil)
	submit(t, e, limit(orderbook.Sell, 101, 1, "alice"))
	res := submit(t, e, limit(orderbook.Buy, 100, 1, "bob"))
	assert.Empty(t, res.Fills)
	assert.Equal(t, StatusResting, res.Status)
	require.NoError(t, e.Check())
}

func TestSubmit_IOCDiscardsRemainder(t *testing.T) {
	e, _ := newEngine(t, nil)
	submit(t, e, limit(orderbook.Sell, 100, 4, "alice"))

	req := limit(orderbook.Buy, 100, 10, "bob")
	req.Type = orderbook.IOC
	res := submit(t, e, req)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, int64(4), res.FilledQty)
	assert.Equal(t, int64(6), res.RemainingQty)
	assert.Equal(t, StatusPartiallyFilled, res.Status)
	assert.False(t, res.Resting())
	assert.Equal(t, 0, e.OpenOrderCount())

	res = submit(t, e, req)
	assert.Equal(t, StatusUnfilled, res.Status)
	assert.Empty(t, res.Fills)
}

func TestSubmit_MarketOrders(t *testing.T) {
	t.Run("empty book", func(t *testing.T) {
		e, _ := newEngine(t, nil)
		res := submit(t, e, NewOrderRequest{Symbol: sym, Side: orderbook.Buy, Type: orderbook.Market, Qty: 5, OwnerID: "bob"})
		assert.Equal(t, StatusUnfilled, res.Status)
		assert.Equal(t, 0, e.OpenOrderCount())
	})

	t.Run("slippage bound", func(t *testing.T) {
		// 5% of 100 allows buying up to 105
		e, _ := newEngine(t, nil)
		submit(t, e, limit(orderbook.Sell, 100, 1, "alice"))
		submit(t, e, limit(orderbook.Sell, 105, 1, "alice"))
		submit(t, e, limit(orderbook.Sell, 106, 1, "alice"))

		res := submit(t, e, NewOrderRequest{Symbol: sym, Side: orderbook.Buy, Type: orderbook.Market, Qty: 5, OwnerID: "bob"})
		assert.Equal(t, int64(2), res.FilledQty)
		assert.Equal(t, StatusPartiallyFilled, res.Status)
		ask, ok := e.Snapshot(1).BestAsk()
		require.True(t, ok)
		assert.Equal(t, int64(106), ask)
		_, ok = e.Snapshot(1).BestBid()
		assert.False(t, ok, "market remainder never rests")
	})

	t.Run("sell with price floor", func(t *testing.T) {
		e, _ := newEngine(t, nil)
		submit(t, e, limit(orderbook.Buy, 100, 1, "alice"))
		submit(t, e, limit(orderbook.Buy, 98, 1, "alice"))

		res := submit(t, e, NewOrderRequest{Symbol: sym, Side: orderbook.Sell, Type: orderbook.Market, Price: 99, Qty: 2, OwnerID: "bob"})
		assert.Equal(t, int64(1), res.FilledQty)
	})
}

func TestMarketBound(t *testing.T) {
	cases := []struct {
		name              string
		best              int64
		side              orderbook.Side
		capPrice, bps, tk int64
		want              int64
	}{
		{"buy floors to tick", 1000, orderbook.Buy, 0, 55, 10, 1000},
		{"buy exact", 1000, orderbook.Buy, 0, 500, 1, 1050},
		{"buy tighter cap", 1000, orderbook.Buy, 1010, 500, 1, 1010},
		{"buy looser cap ignored", 1000, orderbook.Buy, 2000, 500, 1, 1050},
		{"sell ceils to tick", 1000, orderbook.Sell, 0, 55, 10, 1000},
		{"sell exact", 1000, orderbook.Sell, 0, 500, 1, 950},
		{"sell tighter floor", 1000, orderbook.Sell, 990, 500, 1, 990},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, marketBound(tc.best, tc.side, tc.capPrice, tc.bps, tc.tk))
		})
	}
}

func TestSelfTrade_CancelProvide(t *testing.T) {
	e, sink := newEngine(t, func(c *Config) { c.SelfTrade = CancelProvide })
	own := submit(t, e, limit(orderbook.Sell, 100, 5, "alice"))
	other := submit(t, e, limit(orderbook.Sell, 100, 5, "carol"))

	res := submit(t, e, limit(orderbook.Buy, 100, 5, "alice"))
	assert.Equal(t, []uint64{own.OrderID}, res.CanceledOrderIDs)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, other.OrderID, res.Fills[0].MakerOrderID)
	assert.Equal(t, StatusFilled, res.Status)

	_, ok := e.Order(own.OrderID)
	assert.False(t, ok)
	assert.Len(t, sink.fills, 1)
}

func TestSelfTrade_CancelTake(t *testing.T) {
	e, _ := newEngine(t, func(c *Config) { c.SelfTrade = CancelTake })
	submit(t, e, limit(orderbook.Sell, 100, 2, "carol"))
	own := submit(t, e, limit(orderbook.Sell, 101, 5, "alice"))

	res := submit(t, e, limit(orderbook.Buy, 101, 10, "alice"))
	assert.Equal(t, int64(2), res.FilledQty)
	assert.Equal(t, StatusPartiallyFilled, res.Status)
	assert.False(t, res.Resting())

	o, ok := e.Order(own.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(5), o.RemainingQty)
	_, ok = e.Snapshot(1).BestBid()
	assert.False(t, ok)
}

func TestSelfTrade_DecrementTake(t *testing.T) {
	e, sink := newEngine(t, nil)
	own := submit(t, e, limit(orderbook.Sell, 100, 3, "alice"))

	res := submit(t, e, limit(orderbook.Buy, 100, 5, "alice"))
	assert.Empty(t, res.Fills)
	assert.Empty(t, sink.fills)
	assert.Equal(t, int64(3), res.SelfTradeQty)
	assert.Equal(t, int64(2), res.RemainingQty)
	assert.Equal(t, StatusResting, res.Status)

	_, ok := e.Order(own.OrderID)
	assert.False(t, ok)
	assert.Equal(t, []orderbook.Level{{Price: 100, Qty: 2, Orders: 1}}, e.Snapshot(0).Bids)
}

func TestSelfTrade_DecrementTakeConsumesTaker(t *testing.T) {
	e, _ := newEngine(t, nil)
	submit(t, e, limit(orderbook.Sell, 100, 2, "carol"))
	submit(t, e, limit(orderbook.Sell, 100, 5, "alice"))

	res := submit(t, e, limit(orderbook.Buy, 100, 3, "alice"))
	assert.Equal(t, int64(2), res.FilledQty)
	assert.Equal(t, int64(1), res.SelfTradeQty)
	assert.Zero(t, res.RemainingQty)
	assert.Equal(t, StatusPartiallyFilled, res.Status)

	res = submit(t, e, limit(orderbook.Buy, 100, 2, "alice"))
	assert.Empty(t, res.Fills)
	assert.Equal(t, int64(2), res.SelfTradeQty)
	assert.Equal(t, StatusUnfilled, res.Status, "self-trade is not a fill")
	assert.False(t, res.Resting())
}

func TestSubmit_Fees(t *testing.T) {
	e, _ := newEngine(t, func(c *Config) {
		c.TakerFeeBps = 5
		c.MakerFeeBps = -2
	})
	submit(t, e, limit(orderbook.Sell, 30000, 7, "alice"))
	res := submit(t, e, limit(orderbook.Buy, 30000, 7, "bob"))
	require.Len(t, res.Fills, 1)
	// notional 210000
	assert.Equal(t, int64(105), res.Fills[0].TakerFee)
	assert.Equal(t, int64(-42), res.Fills[0].MakerFee)

	assert.Equal(t, int64(0), fee(3, 3, 5), "sub-unit fee truncates")
}

func TestSubmit_Validation(t *testing.T) {
	e, _ := newEngine(t, func(c *Config) {
		c.TickSize = 5
		c.LotSize = 2
		c.MinOrderQty = 2
		c.MaxOrderQty = 100
	})
	base := limit(orderbook.Buy, 100, 10, "alice")

	cases := map[string]func(*NewOrderRequest){
		"zero qty":        func(r *NewOrderRequest) { r.Qty = 0 },
		"negative qty":    func(r *NewOrderRequest) { r.Qty = -2 },
		"zero price":      func(r *NewOrderRequest) { r.Price = 0 },
		"bad side":        func(r *NewOrderRequest) { r.Side = 0 },
		"bad type":        func(r *NewOrderRequest) { r.Type = 9 },
		"no owner":        func(r *NewOrderRequest) { r.OwnerID = "" },
		"other symbol":    func(r *NewOrderRequest) { r.Symbol = "ETH-USDT" },
		"off tick":        func(r *NewOrderRequest) { r.Price = 102 },
		"off lot":         func(r *NewOrderRequest) { r.Qty = 11 },
		"above max":       func(r *NewOrderRequest) { r.Qty = 102 },
		"negative cap":    func(r *NewOrderRequest) { r.Type = orderbook.Market; r.Price = -5 },
		"market off tick": func(r *NewOrderRequest) { r.Type = orderbook.Market; r.Price = 3 },
		"notional overflow": func(r *NewOrderRequest) {
			r.Price = math.MaxInt64 / 10 / 5 * 5
			r.Qty = 20
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			res, err := e.Submit(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)
			assert.Equal(t, StatusRejected, res.Status)
		})
	}

	assert.Equal(t, 0, e.OpenOrderCount(), "rejections leave the book untouched")
	res := submit(t, e, base)
	assert.Equal(t, uint64(1), res.OrderID, "rejections consume no ids")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig(sym)
	cfg.TickSize = 0
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = DefaultConfig(sym)
	cfg.SlippageBps = 10000
	_, err = New(cfg, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = DefaultConfig(sym)
	cfg.TakerFeeBps = 10001
	_, err = New(cfg, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSubmit_LargestNotionalFits(t *testing.T) {
	e, _ := newEngine(t, func(c *Config) {
		c.MaxOrderQty = 0
		c.TakerFeeBps = 10000
		c.MakerFeeBps = -10000
	})
	price := int64(math.MaxInt64 / 4)
	submit(t, e, limit(orderbook.Sell, price, 4, "alice"))
	res := submit(t, e, limit(orderbook.Buy, price, 4, "bob"))
	require.Len(t, res.Fills, 1)
	f := res.Fills[0]
	assert.Equal(t, price*4, f.Notional())
	assert.Equal(t, f.Notional(), f.TakerFee)
	assert.Equal(t, -f.Notional(), f.MakerFee)
}

func TestParseSelfTradePolicy(t *testing.T) {
	for in, want := range map[string]SelfTradePolicy{
		"":               DecrementTake,
		"cancel_provide": CancelProvide,
		"CancelTake":     CancelTake,
		"decrement-take": DecrementTake,
	} {
		got, err := ParseSelfTradePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSelfTradePolicy("abort")
	assert.Error(t, err)
}

func TestOpenOrdersAndRestore(t *testing.T) {
	e, _ := newEngine(t, nil)
	submit(t, e, limit(orderbook.Buy, 99, 1, "alice"))
	submit(t, e, limit(orderbook.Buy, 99, 2, "bob"))
	submit(t, e, limit(orderbook.Sell, 101, 3, "alice"))
	submit(t, e, limit(orderbook.Sell, 101, 1, "bob"))
	submit(t, e, limit(orderbook.Buy, 101, 1, "carol"))

	alice := e.OpenOrders("alice")
	require.Len(t, alice, 2)
	assert.Equal(t, orderbook.Buy, alice[0].Side)
	assert.Equal(t, int64(2), alice[1].RemainingQty, "carol took one lot of alice's ask")

	orders := e.Orders()
	restored, _ := newEngine(t, nil)
	require.NoError(t, restored.Restore(orders, e.Counters()))

	if diff := cmp.Diff(e.Snapshot(0), restored.Snapshot(0)); diff != "" {
		t.Fatalf("restored book differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orders, restored.Orders()); diff != "" {
		t.Fatalf("restored queue order differs (-want +got):\n%s", diff)
	}

	next := submit(t, restored, limit(orderbook.Sell, 99, 1, "dave"))
	assert.Equal(t, uint64(6), next.OrderID)
	require.Len(t, next.Fills, 1)
	assert.Equal(t, uint64(1), next.Fills[0].MakerOrderID, "earliest sequence keeps priority")
	assert.Equal(t, uint64(2), next.Fills[0].ID)

	assert.True(t, errors.Is(restored.Restore(orders, Counters{}), ErrRestoreNonEmpty))
}

func TestReplayAfterCheckpoint(t *testing.T) {
	e, sink := newEngine(t, nil)
	ask := submit(t, e, limit(orderbook.Sell, 100, 10, "alice"))
	orders, c := e.Checkpoint()

	submit(t, e, limit(orderbook.Buy, 100, 3, "bob"))
	submit(t, e, limit(orderbook.Buy, 100, 2, "carol"))
	require.Len(t, sink.fills, 2)

	restored, _ := newEngine(t, nil)
	require.NoError(t, restored.Restore(orders, c))
	// fills at or below the checkpoint are skipped, the rest applied once
	assert.Equal(t, 2, restored.Replay(sink.fills))
	assert.Zero(t, restored.Replay(sink.fills))

	if diff := cmp.Diff(e.Snapshot(0), restored.Snapshot(0)); diff != "" {
		t.Fatalf("replayed book differs (-want +got):\n%s", diff)
	}
	assert.Equal(t, e.Counters(), restored.Counters())
	assert.Equal(t, int64(100), restored.LastPrice())

	res := submit(t, restored, limit(orderbook.Buy, 100, 1, "dave"))
	assert.Equal(t, uint64(4), res.OrderID)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, uint64(3), res.Fills[0].ID)
	assert.Equal(t, ask.OrderID, res.Fills[0].MakerOrderID)
	o, ok := restored.Order(ask.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(4), o.RemainingQty)
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	e, _ := newEngine(t, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			side := orderbook.Buy
			if w%2 == 1 {
				side = orderbook.Sell
			}
			for i := 0; i < 200; i++ {
				_, err := e.Submit(limit(side, int64(95+i%10), 1, string(rune('a'+w))))
				assert.NoError(t, err)
				_ = e.Snapshot(5)
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, e.Check())
}

// TestEngineProperties submits random order flow and checks that the book
// stays uncrossed and consistent, and that quantity is conserved per order.
func TestEngineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := rapid.SampledFrom([]SelfTradePolicy{DecrementTake, CancelProvide, CancelTake}).Draw(t, "policy")
		e, sink := newEngine(t, func(c *Config) { c.SelfTrade = policy })

		var submitted []SubmitResult
		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.IntRange(0, 4).Draw(t, "op") == 0 && len(submitted) > 0 {
				ix := rapid.IntRange(0, len(submitted)-1).Draw(t, "cancel")
				_, _ = e.Cancel(CancelRequest{Symbol: sym, OrderID: submitted[ix].OrderID})
				continue
			}
			req := NewOrderRequest{
				Symbol:  sym,
				Side:    rapid.SampledFrom([]orderbook.Side{orderbook.Buy, orderbook.Sell}).Draw(t, "side"),
				Type:    rapid.SampledFrom([]orderbook.OrderType{orderbook.Limit, orderbook.IOC, orderbook.Market}).Draw(t, "type"),
				Price:   rapid.Int64Range(95, 105).Draw(t, "price"),
				Qty:     rapid.Int64Range(1, 20).Draw(t, "qty"),
				OwnerID: rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "owner"),
			}
			res, err := e.Submit(req)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			var filled int64
			for _, f := range res.Fills {
				filled += f.Qty
				if req.Side == orderbook.Buy && req.Type != orderbook.Market && f.Price > req.Price {
					t.Fatalf("buy limit %d filled at %d", req.Price, f.Price)
				}
				if req.Side == orderbook.Sell && req.Type != orderbook.Market && f.Price < req.Price {
					t.Fatalf("sell limit %d filled at %d", req.Price, f.Price)
				}
			}
			if filled+res.SelfTradeQty+res.RemainingQty != req.Qty {
				t.Fatalf("qty not conserved: filled %d self %d remaining %d of %d",
					filled, res.SelfTradeQty, res.RemainingQty, req.Qty)
			}
			if res.Resting() && req.Type != orderbook.Limit {
				t.Fatalf("%s order rested", req.Type)
			}
			if (res.Status == StatusFilled) != (filled == req.Qty) {
				t.Fatalf("status %s with %d of %d filled", res.Status, filled, req.Qty)
			}
			submitted = append(submitted, res)

			if err := e.Check(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}

		var last uint64
		for _, f := range sink.fills {
			if f.ID <= last {
				t.Fatalf("fill ids not increasing: %d after %d", f.ID, last)
			}
			last = f.ID
		}
	})
}

func BenchmarkSubmit(b *testing.B) {
	e, _ := newEngine(b, nil)
	for i := 0; i < 1000; i++ {
		submit(b, e, limit(orderbook.Sell, int64(1000+i%50), 10, "maker"))
		submit(b, e, limit(orderbook.Buy, int64(999-i%50), 10, "maker"))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := orderbook.Buy
		price := int64(1000 + i%50)
		if i%2 == 1 {
			side = orderbook.Sell
			price = int64(999 - i%50)
		}
		_, _ = e.Submit(limit(side, price, 1, "taker"))
	}
}
