package market

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbook/pkg/app/core/engine"
	"github.com/uhyunpark/hyperbook/pkg/app/core/tradelog"
	"github.com/uhyunpark/hyperbook/pkg/app/core/view"
	"github.com/uhyunpark/hyperbook/pkg/util"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrMarketExists   = errors.New("market already registered")
	ErrMarketHalted   = errors.New("market not accepting orders")
	ErrInvalidSymbol  = errors.New("invalid symbol")
)

// Status defines the trading status of a market
type Status int32

const (
	Active Status = iota // Trading enabled
	Paused               // New orders rejected, cancels allowed
	Closed               // Terminal; market may be evicted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "active":
		return Active, nil
	case "paused":
		return Paused, nil
	case "closed":
		return Closed, nil
	}
	return 0, errors.Newf("unknown market status %q", s)
}

// Params are the per-market trading parameters.
type Params struct {
	// TickSize: minimum price increment in ticks
	TickSize int64
	// LotSize: minimum size increment in lots
	LotSize int64

	MinOrderSize int64
	MaxOrderSize int64 // 0 = unbounded

	MakerFeeBps int64 // can be negative for rebate
	TakerFeeBps int64
	SlippageBps int64 // market order bound around the best opposing price

	SelfTrade engine.SelfTradePolicy

	// PriceDecimals: 1 tick = 10^-PriceDecimals quote units.
	PriceDecimals int32
	// SizeDecimals: 1 lot = 10^-SizeDecimals base units.
	SizeDecimals int32
}

// DefaultParams: $0.01 ticks, 0.001 base lots, 5% market slippage.
var DefaultParams = Params{
	TickSize:      1,
	LotSize:       1,
	MinOrderSize:  1,
	MaxOrderSize:  1_000_000_000,
	MakerFeeBps:   -2,
	TakerFeeBps:   5,
	SlippageBps:   500,
	SelfTrade:     engine.DecrementTake,
	PriceDecimals: 2,
	SizeDecimals:  3,
}

func (p Params) engineConfig(symbol string) engine.Config {
	return engine.Config{
		Symbol:      symbol,
		TickSize:    p.TickSize,
		LotSize:     p.LotSize,
		MinOrderQty: p.MinOrderSize,
		MaxOrderQty: p.MaxOrderSize,
		MakerFeeBps: p.MakerFeeBps,
		TakerFeeBps: p.TakerFeeBps,
		SlippageBps: p.SlippageBps,
		SelfTrade:   p.SelfTrade,
	}
}

// Market bundles one symbol's engine, trade log and read view.
type Market struct {
	Symbol     string    `json:"symbol"`
	BaseAsset  string    `json:"baseAsset"`
	QuoteAsset string    `json:"quoteAsset"`
	Params     Params    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`

	Engine *engine.Engine `json:"-"`
	Trades *tradelog.Log  `json:"-"`
	View   *view.View     `json:"-"`
	status atomic.Int32
}

// ParseSymbol splits "BASE-QUOTE" into its assets.
func ParseSymbol(symbol string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(symbol, "-")
	if !ok || base == "" || quote == "" || strings.Contains(quote, "-") {
		return "", "", errors.Wrapf(ErrInvalidSymbol, "%q is not BASE-QUOTE", symbol)
	}
	for _, r := range base + quote {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", "", errors.Wrapf(ErrInvalidSymbol, "%q must be upper-case alphanumeric", symbol)
		}
	}
	return base, quote, nil
}

// NewMarket creates an Active market with a fresh engine and trade log.
func NewMarket(symbol string, params Params, clock util.Clock) (*Market, error) {
	base, quote, err := ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if params.PriceDecimals < 0 || params.SizeDecimals < 0 {
		return nil, errors.Wrap(engine.ErrInvalidConfig, "decimals cannot be negative")
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	trades := tradelog.New()
	eng, err := engine.New(params.engineConfig(symbol), trades, engine.WithClock(clock))
	if err != nil {
		return nil, errors.Wrapf(err, "market %s", symbol)
	}
	return &Market{
		Symbol:     symbol,
		BaseAsset:  base,
		QuoteAsset: quote,
		Params:     params,
		CreatedAt:  clock.Now(),
		Engine:     eng,
		Trades:     trades,
		View:       view.New(eng, trades, clock),
	}, nil
}

func (m *Market) Status() Status { return Status(m.status.Load()) }

func (m *Market) setStatus(s Status) { m.status.Store(int32(s)) }

// Submit forwards to the engine while the market is Active.
func (m *Market) Submit(req engine.NewOrderRequest) (engine.SubmitResult, error) {
	if st := m.Status(); st != Active {
		return engine.SubmitResult{ClientID: req.ClientID, Status: engine.StatusRejected},
			errors.Wrapf(ErrMarketHalted, "%s is %s", m.Symbol, st)
	}
	return m.Engine.Submit(req)
}

// Cancel is accepted in every status so a halted book can be drained.
func (m *Market) Cancel(orderID uint64) (engine.CancelResult, error) {
	return m.Engine.Cancel(engine.CancelRequest{Symbol: m.Symbol, OrderID: orderID})
}

// TicksToPrice converts integer ticks to a quote-denominated price.
// Example: 123456 ticks with PriceDecimals=2 → 1234.56
func (m *Market) TicksToPrice(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -m.Params.PriceDecimals)
}

// PriceToTicks converts a price to ticks; it fails when the price has more
// precision than one tick.
func (m *Market) PriceToTicks(price decimal.Decimal) (int64, error) {
	return toUnits(price, m.Params.PriceDecimals)
}

func (m *Market) LotsToSize(lots int64) decimal.Decimal {
	return decimal.New(lots, -m.Params.SizeDecimals)
}

func (m *Market) SizeToLots(size decimal.Decimal) (int64, error) {
	return toUnits(size, m.Params.SizeDecimals)
}

func toUnits(d decimal.Decimal, decimals int32) (int64, error) {
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, errors.Wrapf(engine.ErrInvalidOrder, "%s has more than %d decimals", d, decimals)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, errors.Wrapf(engine.ErrInvalidOrder, "%s out of range", d)
	}
	return shifted.IntPart(), nil
}
