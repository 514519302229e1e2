package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/uhyunpark/hyperbook/pkg/app/core/engine"
	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

// FeederConfig controls synthetic order flow.
type FeederConfig struct {
	BatchSize   int           // requests per tick
	Interval    time.Duration // tick period
	NumAccounts int           // simulated traders
	Symbols     []string
	MidPrice    int64 // prices are drawn within ±5% of this
	Seed        int64 // 0 = time-based
}

func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		BatchSize:   10,
		Interval:    100 * time.Millisecond,
		NumAccounts: 50,
		Symbols:     []string{"BTC-USDT"},
		MidPrice:    50000,
	}
}

// HighLoadConfig returns config for stress testing
func HighLoadConfig() FeederConfig {
	cfg := DefaultFeederConfig()
	cfg.BatchSize = 150
	cfg.Interval = 10 * time.Millisecond
	cfg.NumAccounts = 500
	return cfg
}

// OrderGenerator creates random order flow for load testing.
type OrderGenerator struct {
	accounts []string
	symbols  []string
	mid      int64
	rng      *rand.Rand

	// recent accepted order ids per symbol, used as cancel targets
	recent map[string][]uint64
}

func NewOrderGenerator(cfg FeederConfig) *OrderGenerator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	accounts := make([]string, max(cfg.NumAccounts, 1))
	for i := range accounts {
		accounts[i] = fmt.Sprintf("trader_%d", i+1)
	}
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		symbols = []string{"BTC-USDT"}
	}
	mid := cfg.MidPrice
	if mid <= 0 {
		mid = 50000
	}
	return &OrderGenerator{
		accounts: accounts,
		symbols:  symbols,
		mid:      mid,
		rng:      rand.New(rand.NewSource(seed)),
		recent:   make(map[string][]uint64),
	}
}

// Order returns a random request: 70% limit, 20% IOC, 10% market.
func (g *OrderGenerator) Order() engine.NewOrderRequest {
	req := engine.NewOrderRequest{
		Symbol:  g.symbols[g.rng.Intn(len(g.symbols))],
		Side:    orderbook.Buy,
		Type:    orderbook.Limit,
		OwnerID: g.accounts[g.rng.Intn(len(g.accounts))],
		Qty:     int64(g.rng.Intn(100) + 1),
	}
	switch r := g.rng.Intn(100); {
	case r >= 90:
		req.Type = orderbook.Market
	case r >= 70:
		req.Type = orderbook.IOC
	}
	if g.rng.Intn(2) == 1 {
		req.Side = orderbook.Sell
	}
	if req.Type != orderbook.Market {
		spread := g.mid / 20
		req.Price = max(1, g.mid+g.rng.Int63n(2*spread+1)-spread)
	}
	return req
}

// Cancel picks a recently accepted order, or false when none is known.
func (g *OrderGenerator) Cancel() (engine.CancelRequest, bool) {
	sym := g.symbols[g.rng.Intn(len(g.symbols))]
	ids := g.recent[sym]
	if len(ids) == 0 {
		return engine.CancelRequest{}, false
	}
	i := g.rng.Intn(len(ids))
	id := ids[i]
	g.recent[sym] = append(ids[:i], ids[i+1:]...)
	return engine.CancelRequest{Symbol: sym, OrderID: id}, true
}

// Accepted remembers a resting order as a cancel target.
func (g *OrderGenerator) Accepted(symbol string, res engine.SubmitResult) {
	if !res.Resting() {
		return
	}
	ids := append(g.recent[symbol], res.RestingOrderID)
	if len(ids) > 100 {
		ids = ids[len(ids)-100:]
	}
	g.recent[symbol] = ids
}

// FeederStats counts what a feeder run produced.
type FeederStats struct {
	Orders  int
	Cancels int
	Fills   int
	Rejects int
	Elapsed time.Duration
}

func (s FeederStats) OrdersPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Orders+s.Cancels) / s.Elapsed.Seconds()
}

// step submits one mixed request (90% orders, 10% cancels) through the app.
func (a *App) step(ctx context.Context, g *OrderGenerator, st *FeederStats) {
	if g.rng.Intn(100) < 10 {
		if req, ok := g.Cancel(); ok {
			if _, err := a.Cancel(ctx, "", req); err == nil {
				st.Cancels++
			}
			return
		}
	}
	req := g.Order()
	res, err := a.Submit(ctx, "", req)
	if err != nil {
		st.Rejects++
		return
	}
	st.Orders++
	st.Fills += len(res.Fills)
	g.Accepted(req.Symbol, res)
}

// RunFeeder feeds synthetic order flow into the app until ctx is done.
func (a *App) RunFeeder(ctx context.Context, cfg FeederConfig) FeederStats {
	g := NewOrderGenerator(cfg)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	start := time.Now()
	var st FeederStats
	a.log.Infow("feeder_started", "batch", cfg.BatchSize, "interval", cfg.Interval, "accounts", cfg.NumAccounts, "symbols", cfg.Symbols)
	for {
		select {
		case <-ctx.Done():
			st.Elapsed = time.Since(start)
			a.log.Infow("feeder_stopped",
				"orders", st.Orders,
				"cancels", st.Cancels,
				"fills", st.Fills,
				"rejects", st.Rejects,
				"rate", st.OrdersPerSec(),
			)
			return st
		case <-ticker.C:
			for i := 0; i < cfg.BatchSize; i++ {
				a.step(ctx, g, &st)
			}
		}
	}
}

// RunBurst submits n requests back to back and returns the counts.
func (a *App) RunBurst(ctx context.Context, cfg FeederConfig, n int) FeederStats {
	g := NewOrderGenerator(cfg)
	start := time.Now()
	var st FeederStats
	for i := 0; i < n && ctx.Err() == nil; i++ {
		a.step(ctx, g, &st)
	}
	st.Elapsed = time.Since(start)
	return st
}
