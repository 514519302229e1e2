package market

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/uhyunpark/hyperbook/pkg/util"
)

// Registry maps symbols to markets. Markets are created on first reference
// and leave the registry only through Evict.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market

	defaults  Params
	overrides map[string]Params
	clock     util.Clock
}

type RegistryOption func(*Registry)

// WithParams sets parameters for one symbol, replacing the defaults.
func WithParams(symbol string, p Params) RegistryOption {
	return func(r *Registry) { r.overrides[symbol] = p }
}

func WithRegistryClock(c util.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// NewRegistry creates an empty registry; markets created by GetOrCreate use
// defaults unless overridden with WithParams.
func NewRegistry(defaults Params, opts ...RegistryOption) *Registry {
	r := &Registry{
		markets:   make(map[string]*Market),
		defaults:  defaults,
		overrides: make(map[string]Params),
		clock:     util.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a pre-built market.
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return errors.New("cannot register nil market")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.Symbol]; exists {
		return errors.Wrapf(ErrMarketExists, "%s", m.Symbol)
	}
	r.markets[m.Symbol] = m
	return nil
}

func (r *Registry) Get(symbol string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[symbol]
	if !exists {
		return nil, errors.Wrapf(ErrMarketNotFound, "%s", symbol)
	}
	return m, nil
}

// GetOrCreate returns the market for symbol, creating it on first reference.
// The bool reports whether a new market was created.
func (r *Registry) GetOrCreate(symbol string) (*Market, bool, error) {
	if m, err := r.Get(symbol); err == nil {
		return m, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, exists := r.markets[symbol]; exists {
		return m, false, nil
	}
	params, ok := r.overrides[symbol]
	if !ok {
		params = r.defaults
	}
	m, err := NewMarket(symbol, params, r.clock)
	if err != nil {
		return nil, false, err
	}
	r.markets[symbol] = m
	return m, true, nil
}

// List returns all markets sorted by symbol.
func (r *Registry) List() []*Market {
	return r.filter(func(*Market) bool { return true })
}

func (r *Registry) ListActive() []*Market {
	return r.filter(func(m *Market) bool { return m.Status() == Active })
}

func (r *Registry) filter(keep func(*Market) bool) []*Market {
	r.mu.RLock()
	markets := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		if keep(m) {
			markets = append(markets, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })
	return markets
}

// UpdateStatus changes the trading status of a market.
// Closed is terminal.
func (r *Registry) UpdateStatus(symbol string, status Status) error {
	if status < Active || status > Closed {
		return errors.Newf("unknown market status %d", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[symbol]
	if !exists {
		return errors.Wrapf(ErrMarketNotFound, "%s", symbol)
	}
	if from := m.Status(); from == Closed && status != Closed {
		return errors.Newf("cannot change %s status from closed", symbol)
	}
	m.setStatus(status)
	return nil
}

// Evict removes a Closed market.
func (r *Registry) Evict(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[symbol]
	if !exists {
		return errors.Wrapf(ErrMarketNotFound, "%s", symbol)
	}
	if st := m.Status(); st != Closed {
		return errors.Newf("cannot evict market %s with status %s (must be closed)", symbol, st)
	}
	delete(r.markets, symbol)
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

func (r *Registry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[symbol]
	return exists
}
