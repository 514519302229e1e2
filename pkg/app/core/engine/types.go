package engine

import "github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"

// Status summarises what happened to a submitted order.
type Status string

const (
	StatusFilled          Status = "filled"           // the whole quantity traded
	StatusPartiallyFilled Status = "partially_filled" // some fills, remainder discarded
	StatusResting         Status = "resting"          // remainder rests on the book
	StatusUnfilled        Status = "unfilled"         // no fills, remainder discarded
	StatusRejected        Status = "rejected"         // failed validation, book untouched
)

// NewOrderRequest is the input to Submit. Price is ignored for market
// orders unless positive, in which case it caps (buy) or floors (sell)
// the slippage bound.
type NewOrderRequest struct {
	Symbol   string              `json:"symbol"`
	Side     orderbook.Side      `json:"side"`
	Type     orderbook.OrderType `json:"type"`
	Price    int64               `json:"price"`
	Qty      int64               `json:"qty"`
	OwnerID  string              `json:"ownerId"`
	ClientID string              `json:"clientId,omitempty"`
}

// SubmitResult carries everything one Submit produced.
type SubmitResult struct {
	OrderID  uint64           `json:"orderId"`
	ClientID string           `json:"clientId,omitempty"`
	Status   Status           `json:"status"`
	Fills    []orderbook.Fill `json:"fills"`

	// RestingOrderID is set when the remainder was placed on the book.
	RestingOrderID uint64 `json:"restingOrderId,omitempty"`

	FilledQty int64 `json:"filledQty"`
	// RemainingQty is what rested or was discarded.
	RemainingQty int64 `json:"remainingQty"`

	// SelfTradeQty is quantity removed from both sides under DecrementTake.
	// It counts as discarded, never as filled: an order consumed entirely
	// by self-trade is StatusUnfilled.
	SelfTradeQty int64 `json:"selfTradeQty,omitempty"`
	// CanceledOrderIDs lists resting orders removed under CancelProvide.
	CanceledOrderIDs []uint64 `json:"canceledOrderIds,omitempty"`
}

// Resting reports whether a remainder was left on the book.
func (r SubmitResult) Resting() bool { return r.RestingOrderID != 0 }

type CancelRequest struct {
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"orderId"`
}

// CancelResult returns the removed order as it was at removal time.
type CancelResult struct {
	Order orderbook.Order `json:"order"`
}

// Recorder receives every fill in execution order.
type Recorder interface {
	Record(orderbook.Fill)
}
