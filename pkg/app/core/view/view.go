// Package view exposes read-only projections of a market: depth, spread and
// trade statistics.
package view

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperbook/pkg/app/core/tradelog"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

// Source produces a consistent snapshot of a book; *engine.Engine is one.
type Source interface {
	Snapshot(depth int) orderbook.Snapshot
}

type LevelView struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

type Depth struct {
	Bids []LevelView `json:"bids"`
	Asks []LevelView `json:"asks"`
}

// Summary bundles top-of-book and trade statistics.
type Summary struct {
	BestBid          int64           `json:"bestBid"`
	BestAsk          int64           `json:"bestAsk"`
	Spread           int64           `json:"spread"`
	SpreadPercentage decimal.Decimal `json:"spreadPercentage"`
	MidPrice         int64           `json:"midPrice"`
	Stats            tradelog.Stats  `json:"stats"`
}

type View struct {
	src    Source
	trades *tradelog.Log
	clock  util.Clock
}

func New(src Source, trades *tradelog.Log, clock util.Clock) *View {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &View{src: src, trades: trades, clock: clock}
}

// Depth returns up to n levels per side, best first.
func (v *View) Depth(n int) Depth {
	return toDepth(v.src.Snapshot(n))
}

func toDepth(s orderbook.Snapshot) Depth {
	d := Depth{Bids: make([]LevelView, 0, len(s.Bids)), Asks: make([]LevelView, 0, len(s.Asks))}
	for _, l := range s.Bids {
		d.Bids = append(d.Bids, LevelView{Price: l.Price, Qty: l.Qty})
	}
	for _, l := range s.Asks {
		d.Asks = append(d.Asks, LevelView{Price: l.Price, Qty: l.Qty})
	}
	return d
}

// Spread returns bestAsk-bestBid, or 0 when either side is empty.
func (v *View) Spread() int64 {
	return spread(v.src.Snapshot(1))
}

// SpreadPercentage returns spread/bestBid×100, or 0 when there is no bid.
func (v *View) SpreadPercentage() decimal.Decimal {
	return spreadPct(v.src.Snapshot(1))
}

// MidPrice returns the integer midpoint of the top of book, or 0 when either
// side is empty.
func (v *View) MidPrice() int64 {
	return mid(v.src.Snapshot(1))
}

func (v *View) Stats(window time.Duration) tradelog.Stats {
	return v.trades.Stats(v.clock.Now(), window)
}

// Summary computes every top-of-book figure from a single snapshot.
func (v *View) Summary(window time.Duration) Summary {
	s := v.src.Snapshot(1)
	bid, _ := s.BestBid()
	ask, _ := s.BestAsk()
	return Summary{
		BestBid:          bid,
		BestAsk:          ask,
		Spread:           spread(s),
		SpreadPercentage: spreadPct(s),
		MidPrice:         mid(s),
		Stats:            v.Stats(window),
	}
}

func spread(s orderbook.Snapshot) int64 {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return ask - bid
}

func spreadPct(s orderbook.Snapshot) decimal.Decimal {
	bid, ok := s.BestBid()
	sp := spread(s)
	if !ok || bid == 0 || sp == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sp).Mul(decimal.NewFromInt(100)).DivRound(decimal.NewFromInt(bid), 4)
}

func mid(s orderbook.Snapshot) int64 {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	return bid + (ask-bid)/2
}
