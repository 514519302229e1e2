package orderbook

import (
	"container/list"

	"github.com/cockroachdb/errors"
)

// location remembers where a resting order lives so cancel is O(1).
type location struct {
	order *Order
	level *PriceLevel
	elem  *list.Element
}

// OrderBook holds both sides of one symbol plus the id index.
// It is not safe for concurrent use; the matching engine serialises access.
type OrderBook struct {
	bids  *BookSide
	asks  *BookSide
	index map[uint64]*location
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:  NewBookSide(Buy),
		asks:  NewBookSide(Sell),
		index: make(map[uint64]*location),
	}
}

func (ob *OrderBook) Bids() *BookSide { return ob.bids }
func (ob *OrderBook) Asks() *BookSide { return ob.asks }

// Side returns the book side holding orders of side s.
func (ob *OrderBook) Side(s Side) *BookSide {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// Len returns the number of resting orders.
func (ob *OrderBook) Len() int { return len(ob.index) }

// Add rests o at the tail of its price level.
func (ob *OrderBook) Add(o *Order) error {
	if _, exists := ob.index[o.ID]; exists {
		return errors.Newf("order %d already resting", o.ID)
	}
	if o.RemainingQty <= 0 || o.RemainingQty > o.OriginalQty {
		return errors.Newf("order %d: remaining qty %d out of range (original %d)", o.ID, o.RemainingQty, o.OriginalQty)
	}
	level, elem := ob.Side(o.Side).Insert(o)
	ob.index[o.ID] = &location{order: o, level: level, elem: elem}
	return nil
}

// Get returns the live resting order with the given id.
func (ob *OrderBook) Get(id uint64) (*Order, bool) {
	loc, ok := ob.index[id]
	if !ok {
		return nil, false
	}
	return loc.order, true
}

// Remove takes the order out of the book, dropping its level if it empties.
func (ob *OrderBook) Remove(id uint64) (*Order, bool) {
	loc, ok := ob.index[id]
	if !ok {
		return nil, false
	}
	ob.unlink(loc)
	return loc.order, true
}

// Reduce decrements a resting order by qty. An order reaching zero is removed
// together with its level if that empties; the return value reports removal.
func (ob *OrderBook) Reduce(id uint64, qty int64) bool {
	loc, ok := ob.index[id]
	if !ok {
		return false
	}
	loc.level.reduce(loc.order, qty)
	if loc.order.RemainingQty > 0 {
		return false
	}
	ob.unlink(loc)
	return true
}

func (ob *OrderBook) unlink(loc *location) {
	loc.level.remove(loc.elem)
	delete(ob.index, loc.order.ID)
	ob.Side(loc.level.Side()).RemoveIfEmpty(loc.level.Price)
}

func (ob *OrderBook) BestBid() (int64, bool) {
	l, ok := ob.bids.Best()
	if !ok {
		return 0, false
	}
	return l.Price, true
}

func (ob *OrderBook) BestAsk() (int64, bool) {
	l, ok := ob.asks.Best()
	if !ok {
		return 0, false
	}
	return l.Price, true
}

// Snapshot aggregates up to n levels per side (n <= 0 for all).
func (ob *OrderBook) Snapshot(n int) Snapshot {
	return Snapshot{Bids: ob.bids.Depth(n), Asks: ob.asks.Depth(n)}
}

// Orders returns copies of every resting order, bids then asks, each side
// best price first and FIFO within a price.
func (ob *OrderBook) Orders() []Order {
	out := make([]Order, 0, len(ob.index))
	collect := func(l *PriceLevel) bool {
		out = append(out, l.Orders()...)
		return true
	}
	ob.bids.Each(collect)
	ob.asks.Each(collect)
	return out
}

// Check verifies the structural invariants of the book: no empty levels,
// level aggregates equal to the sum of their orders, every queued order
// indexed exactly once and 0 < remaining <= original.
func (ob *OrderBook) Check() error {
	seen := 0
	var err error
	check := func(l *PriceLevel) bool {
		if l.Empty() {
			err = errors.Newf("%s level %d is empty", l.Side(), l.Price)
			return false
		}
		var sum int64
		for e := l.orders.Front(); e != nil; e = e.Next() {
			o := e.Value.(*Order)
			if o.Price != l.Price || o.Side != l.Side() {
				err = errors.Newf("order %d (%s@%d) queued in %s level %d", o.ID, o.Side, o.Price, l.Side(), l.Price)
				return false
			}
			if o.RemainingQty <= 0 || o.RemainingQty > o.OriginalQty {
				err = errors.Newf("order %d: remaining %d original %d", o.ID, o.RemainingQty, o.OriginalQty)
				return false
			}
			if loc, ok := ob.index[o.ID]; !ok || loc.elem != e {
				err = errors.Newf("order %d not indexed at its queue position", o.ID)
				return false
			}
			sum += o.RemainingQty
			seen++
		}
		if sum != l.Qty() {
			err = errors.Newf("%s level %d: aggregate %d, orders sum %d", l.Side(), l.Price, l.Qty(), sum)
			return false
		}
		return true
	}
	ob.bids.Each(check)
	if err != nil {
		return err
	}
	ob.asks.Each(check)
	if err != nil {
		return err
	}
	if seen != len(ob.index) {
		return errors.Newf("index holds %d orders, levels hold %d", len(ob.index), seen)
	}
	if bid, ok := ob.BestBid(); ok {
		if ask, ok := ob.BestAsk(); ok && bid >= ask {
			return errors.Newf("book crossed: best bid %d >= best ask %d", bid, ask)
		}
	}
	return nil
}
