package engine

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// SelfTradePolicy decides what happens when an incoming order would match a
// resting order of the same owner.
type SelfTradePolicy int8

const (
	// DecrementTake reduces both orders by the overlapping quantity as if they
	// had traded, without recording a fill.
	DecrementTake SelfTradePolicy = iota
	// CancelProvide removes the resting order and keeps matching.
	CancelProvide
	// CancelTake discards the rest of the incoming order.
	CancelTake
)

func (p SelfTradePolicy) String() string {
	switch p {
	case DecrementTake:
		return "decrement_take"
	case CancelProvide:
		return "cancel_provide"
	case CancelTake:
		return "cancel_take"
	default:
		return "unknown"
	}
}

// ParseSelfTradePolicy accepts snake_case, kebab-case or CamelCase names.
func ParseSelfTradePolicy(s string) (SelfTradePolicy, error) {
	norm := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "", "decrementtake":
		return DecrementTake, nil
	case "cancelprovide":
		return CancelProvide, nil
	case "canceltake":
		return CancelTake, nil
	default:
		return 0, errors.Newf("unknown self-trade policy %q", s)
	}
}

// Config holds the per-market parameters the engine enforces.
type Config struct {
	Symbol string

	// TickSize: minimum price increment; all prices are integer ticks.
	TickSize int64
	// LotSize: minimum quantity increment; all quantities are integer lots.
	LotSize int64

	// Order size bounds in lots. Zero MaxOrderQty means unbounded.
	MinOrderQty int64
	MaxOrderQty int64

	// Fees in basis points of notional. Maker fee may be negative (rebate).
	MakerFeeBps int64
	TakerFeeBps int64

	// SlippageBps bounds how far past the best opposing price a market order
	// may trade, e.g. 500 = 5%.
	SlippageBps int64

	SelfTrade SelfTradePolicy
}

// DefaultConfig returns unit tick/lot sizes, no fees, 5% market slippage
// and DecrementTake self-trade prevention.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:      symbol,
		TickSize:    1,
		LotSize:     1,
		MinOrderQty: 1,
		SlippageBps: 500,
		SelfTrade:   DecrementTake,
	}
}

func (c Config) Validate() error {
	if c.Symbol == "" {
		return errors.Wrap(ErrInvalidConfig, "symbol cannot be empty")
	}
	if c.TickSize <= 0 {
		return errors.Wrap(ErrInvalidConfig, "tick size must be positive")
	}
	if c.LotSize <= 0 {
		return errors.Wrap(ErrInvalidConfig, "lot size must be positive")
	}
	if c.MinOrderQty < 0 || c.MaxOrderQty < 0 {
		return errors.Wrap(ErrInvalidConfig, "order size bounds cannot be negative")
	}
	if c.MaxOrderQty > 0 && c.MinOrderQty > c.MaxOrderQty {
		return errors.Wrap(ErrInvalidConfig, "min order size cannot exceed max order size")
	}
	if c.TakerFeeBps < 0 {
		return errors.Wrap(ErrInvalidConfig, "taker fee cannot be negative")
	}
	if c.TakerFeeBps > 10000 || c.MakerFeeBps > 10000 {
		return errors.Wrap(ErrInvalidConfig, "fees cannot exceed 10000 bps")
	}
	if c.MakerFeeBps < -c.TakerFeeBps {
		return errors.Wrap(ErrInvalidConfig, "maker rebate cannot exceed taker fee")
	}
	if c.SlippageBps < 0 || c.SlippageBps >= 10000 {
		return errors.Wrap(ErrInvalidConfig, "slippage must be in [0, 10000) bps")
	}
	if c.SelfTrade < DecrementTake || c.SelfTrade > CancelTake {
		return errors.Wrap(ErrInvalidConfig, "unknown self-trade policy")
	}
	return nil
}
