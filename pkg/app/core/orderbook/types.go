package orderbook

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side { return -s }

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Newf("invalid side %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide accepts "buy"/"sell" (and "bid"/"ask") in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid":
		return Buy, nil
	case "sell", "ask":
		return Sell, nil
	default:
		return 0, errors.Newf("unknown side %q", s)
	}
}

type OrderType int8

const (
	Limit OrderType = iota + 1 // rests any unfilled remainder
	IOC                        // immediate-or-cancel: remainder discarded
	Market                     // IOC bounded by the configured slippage
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case IOC:
		return "ioc"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

func (t OrderType) Valid() bool { return t >= Limit && t <= Market }

func (t OrderType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Newf("invalid order type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *OrderType) UnmarshalText(b []byte) error {
	v, err := ParseOrderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseOrderType accepts "limit" (alias "gtc"), "ioc" and "market".
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limit", "gtc":
		return Limit, nil
	case "ioc":
		return IOC, nil
	case "market":
		return Market, nil
	default:
		return 0, errors.Newf("unknown order type %q", s)
	}
}

// Order is a resting or incoming order. Price is in integer ticks and
// quantities in integer lots.
type Order struct {
	ID           uint64    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Type         OrderType `json:"type"`
	Price        int64     `json:"price"`
	OriginalQty  int64     `json:"originalQty"`
	RemainingQty int64     `json:"remainingQty"`
	Timestamp    int64     `json:"timestamp"` // unix nanos
	Sequence     uint64    `json:"sequence"`  // arrival order within the book
	OwnerID      string    `json:"ownerId"`
	ClientID     string    `json:"clientId,omitempty"`
}

func (o *Order) FilledQty() int64 { return o.OriginalQty - o.RemainingQty }

// Fill is one execution between a resting maker and an incoming taker.
// Fees are in tick*lot units; a negative maker fee is a rebate.
type Fill struct {
	ID           uint64 `json:"id"`
	Symbol       string `json:"symbol"`
	TakerOrderID uint64 `json:"takerOrderId"`
	MakerOrderID uint64 `json:"makerOrderId"`
	TakerOwnerID string `json:"takerOwnerId"`
	MakerOwnerID string `json:"makerOwnerId"`
	Price        int64  `json:"price"`
	Qty          int64  `json:"qty"`
	Timestamp    int64  `json:"timestamp"`
	TakerSide    Side   `json:"takerSide"`
	TakerFee     int64  `json:"takerFee"`
	MakerFee     int64  `json:"makerFee"`
}

// Notional is price*qty of the fill. The engine rejects orders whose
// price*qty overflows, and a fill never exceeds its maker.
func (f Fill) Notional() int64 { return f.Price * f.Qty }

// Level is an aggregated, read-only view of one price level.
type Level struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// Snapshot holds the top levels of both sides taken at one instant.
// Bids are sorted high to low, asks low to high.
type Snapshot struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

func (s Snapshot) BestBid() (int64, bool) {
	if len(s.Bids) == 0 {
		return 0, false
	}
	return s.Bids[0].Price, true
}

func (s Snapshot) BestAsk() (int64, bool) {
	if len(s.Asks) == 0 {
		return 0, false
	}
	return s.Asks[0].Price, true
}
