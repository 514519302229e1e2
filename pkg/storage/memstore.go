package storage

import (
	"sort"
	"sync"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

// InMemoryStore keeps everything in process memory. It is used when no
// data directory is configured.
type InMemoryStore struct {
	mu     sync.Mutex
	trades map[string][]orderbook.Fill // symbol -> fills, oldest first
	books  map[string]BookCheckpoint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		trades: make(map[string][]orderbook.Fill),
		books:  make(map[string]BookCheckpoint),
	}
}

func (s *InMemoryStore) SaveFills(fills []orderbook.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fills {
		s.trades[f.Symbol] = append(s.trades[f.Symbol], f)
	}
	return nil
}

func (s *InMemoryStore) LoadRecentTrades(symbol string, limit int) ([]orderbook.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.trades[symbol]
	var out []orderbook.Fill
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *InMemoryStore) LoadTradesSince(symbol string, since int64) ([]orderbook.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.trades[symbol]
	i := sort.Search(len(all), func(i int) bool { return all[i].Timestamp >= since })
	return append([]orderbook.Fill(nil), all[i:]...), nil
}

func (s *InMemoryStore) TradeSymbols() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbols := make([]string, 0, len(s.trades))
	for sym, fills := range s.trades {
		if len(fills) > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *InMemoryStore) SaveBook(cp BookCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.Orders = append([]orderbook.Order(nil), cp.Orders...)
	s.books[cp.Symbol] = cp
	return nil
}

func (s *InMemoryStore) LoadBook(symbol string) (BookCheckpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.books[symbol]
	if ok {
		cp.Orders = append([]orderbook.Order(nil), cp.Orders...)
	}
	return cp, ok, nil
}

func (s *InMemoryStore) BookSymbols() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbols := make([]string, 0, len(s.books))
	for sym := range s.books {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *InMemoryStore) Close() error { return nil }

var _ Store = (*InMemoryStore)(nil)
