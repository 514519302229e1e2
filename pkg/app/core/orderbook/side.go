package orderbook

import (
	"container/list"

	"github.com/google/btree"
)

const btreeDegree = 32

// BookSide keeps the price levels of one side ordered best first.
// Bids sort high to low, asks low to high, so Min of the tree is always the
// best level. The price map gives O(1) access to a known level.
type BookSide struct {
	side   Side
	tree   *btree.BTreeG[*PriceLevel]
	levels map[int64]*PriceLevel
}

func NewBookSide(side Side) *BookSide {
	less := func(a, b *PriceLevel) bool { return a.Price < b.Price }
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.Price > b.Price }
	}
	return &BookSide{
		side:   side,
		tree:   btree.NewG(btreeDegree, less),
		levels: make(map[int64]*PriceLevel),
	}
}

func (s *BookSide) Side() Side { return s.side }

// Len returns the number of price levels.
func (s *BookSide) Len() int { return len(s.levels) }

// Best returns the best price level (highest bid or lowest ask).
func (s *BookSide) Best() (*PriceLevel, bool) {
	return s.tree.Min()
}

func (s *BookSide) Level(price int64) (*PriceLevel, bool) {
	l, ok := s.levels[price]
	return l, ok
}

// Insert appends o at the tail of its price's queue, creating the level if needed.
func (s *BookSide) Insert(o *Order) (*PriceLevel, *list.Element) {
	l, ok := s.levels[o.Price]
	if !ok {
		l = newPriceLevel(s.side, o.Price)
		s.levels[o.Price] = l
		s.tree.ReplaceOrInsert(l)
	}
	return l, l.push(o)
}

// RemoveIfEmpty drops the level at price when it holds no orders and reports
// whether a level was removed.
func (s *BookSide) RemoveIfEmpty(price int64) bool {
	l, ok := s.levels[price]
	if !ok || !l.Empty() {
		return false
	}
	delete(s.levels, price)
	s.tree.Delete(l)
	return true
}

// Depth returns up to n aggregated levels, best first. n <= 0 means all levels.
func (s *BookSide) Depth(n int) []Level {
	size := s.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]Level, 0, size)
	s.tree.Ascend(func(l *PriceLevel) bool {
		out = append(out, l.level())
		return len(out) < size
	})
	return out
}

// Each walks the levels best first until fn returns false.
func (s *BookSide) Each(fn func(*PriceLevel) bool) {
	s.tree.Ascend(func(l *PriceLevel) bool { return fn(l) })
}
