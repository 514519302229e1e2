package orderbook

import "container/list"

// PriceLevel is the FIFO queue of resting orders at one price.
// Qty is kept in step with the queue so depth reads never walk the orders.
type PriceLevel struct {
	Price  int64
	side   Side
	orders *list.List // of *Order, oldest at front
	qty    int64
}

func newPriceLevel(side Side, price int64) *PriceLevel {
	return &PriceLevel{Price: price, side: side, orders: list.New()}
}

func (l *PriceLevel) Side() Side  { return l.side }
func (l *PriceLevel) Qty() int64  { return l.qty }
func (l *PriceLevel) Len() int    { return l.orders.Len() }
func (l *PriceLevel) Empty() bool { return l.orders.Len() == 0 }

// Front returns the oldest order at this price, or nil if the level is empty.
func (l *PriceLevel) Front() *Order {
	e := l.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Order)
}

func (l *PriceLevel) push(o *Order) *list.Element {
	l.qty += o.RemainingQty
	return l.orders.PushBack(o)
}

func (l *PriceLevel) remove(e *list.Element) {
	o := l.orders.Remove(e).(*Order)
	l.qty -= o.RemainingQty
}

// reduce takes qty off an order in this level without touching its queue position.
func (l *PriceLevel) reduce(o *Order, qty int64) {
	o.RemainingQty -= qty
	l.qty -= qty
}

// Orders returns copies of the queued orders in arrival order.
func (l *PriceLevel) Orders() []Order {
	out := make([]Order, 0, l.orders.Len())
	for e := l.orders.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Order))
	}
	return out
}

func (l *PriceLevel) level() Level {
	return Level{Price: l.Price, Qty: l.qty, Orders: l.orders.Len()}
}
