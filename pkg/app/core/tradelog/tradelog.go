package tradelog

import (
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

// Log is an append-only record of fills for one market. Fills must be
// recorded in non-decreasing timestamp order, which the engine guarantees.
type Log struct {
	mu    sync.RWMutex
	fills []orderbook.Fill
}

func New() *Log {
	return &Log{}
}

// Record appends f. It satisfies engine.Recorder.
func (l *Log) Record(f orderbook.Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, f)
	l.mu.Unlock()
}

// Load seeds the log with previously persisted fills, oldest first.
func (l *Log) Load(fills []orderbook.Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, fills...)
	l.mu.Unlock()
}

func (l *Log) view() []orderbook.Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	// entries below len are never written again, so the header is a stable view
	return l.fills[:len(l.fills):len(l.fills)]
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fills)
}

// Last returns the most recent fill.
func (l *Log) Last() (orderbook.Fill, bool) {
	fills := l.view()
	if len(fills) == 0 {
		return orderbook.Fill{}, false
	}
	return fills[len(fills)-1], true
}

// First returns the oldest fill held in memory.
func (l *Log) First() (orderbook.Fill, bool) {
	fills := l.view()
	if len(fills) == 0 {
		return orderbook.Fill{}, false
	}
	return fills[0], true
}

// Query yields fills with Timestamp >= since, newest first, stopping after
// limit fills (limit <= 0 means no limit). The sequence reflects the log at
// the time Query was called.
func (l *Log) Query(since int64, limit int) iter.Seq[orderbook.Fill] {
	fills := l.view()
	return func(yield func(orderbook.Fill) bool) {
		n := 0
		for i := len(fills) - 1; i >= 0; i-- {
			if fills[i].Timestamp < since {
				return
			}
			if !yield(fills[i]) {
				return
			}
			n++
			if limit > 0 && n >= limit {
				return
			}
		}
	}
}

// Stats summarises trading over a trailing window.
type Stats struct {
	LastPrice      int64           `json:"lastPrice"`
	Volume         decimal.Decimal `json:"volume"` // Σ price×qty
	High           int64           `json:"high"`
	Low            int64           `json:"low"`
	PriceChangePct decimal.Decimal `json:"priceChangePct"`
	Trades         int             `json:"trades"`
	Window         time.Duration   `json:"window"`
}

// Stats aggregates fills with Timestamp >= now-window. LastPrice is the
// latest trade overall, even when it falls outside the window.
func (l *Log) Stats(now time.Time, window time.Duration) Stats {
	st := Stats{Volume: decimal.Zero, PriceChangePct: decimal.Zero, Window: window}
	if last, ok := l.Last(); ok {
		st.LastPrice = last.Price
	}

	var latest, oldest int64
	for f := range l.Query(now.Add(-window).UnixNano(), 0) {
		if st.Trades == 0 {
			latest, st.High, st.Low = f.Price, f.Price, f.Price
		}
		st.Trades++
		oldest = f.Price
		st.High = max(st.High, f.Price)
		st.Low = min(st.Low, f.Price)
		st.Volume = st.Volume.Add(decimal.NewFromInt(f.Price).Mul(decimal.NewFromInt(f.Qty)))
	}
	st.PriceChangePct = ChangePct(oldest, latest)
	return st
}

// ChangePct returns (to-from)/from×100 rounded to 4 places, or zero when from is zero.
func ChangePct(from, to int64) decimal.Decimal {
	if from == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(to - from).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(from), 4)
}
