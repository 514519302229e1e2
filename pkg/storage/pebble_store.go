package storage

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

// BookCheckpoint is the resting state of one market at a point in time.
type BookCheckpoint struct {
	Symbol      string
	Status      string
	Orders      []orderbook.Order // bids then asks, best first, FIFO within a price
	LastOrderID uint64
	LastTradeID uint64
	// LastTimestamp is the engine clock at the checkpoint; later fills are
	// stamped at or after it.
	LastTimestamp int64
	TakenAt       int64
	Hash          [32]byte // depth hash taken with the orders
}

// Store persists fills and book checkpoints.
type Store interface {
	SaveFills(fills []orderbook.Fill) error
	LoadRecentTrades(symbol string, limit int) ([]orderbook.Fill, error)
	LoadTradesSince(symbol string, since int64) ([]orderbook.Fill, error)
	TradeSymbols() ([]string, error)
	SaveBook(cp BookCheckpoint) error
	LoadBook(symbol string) (BookCheckpoint, bool, error)
	BookSymbols() ([]string, error)
	Close() error
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	return OpenPebbleStore(path, nil)
}

// OpenPebbleStore opens the store on fs; nil means the OS filesystem.
func OpenPebbleStore(path string, fs vfs.FS) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", path)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveFills writes fills in one unsynced batch; only checkpoints are synced.
func (s *PebbleStore) SaveFills(fills []orderbook.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, f := range fills {
		val, err := encodeFill(f)
		if err != nil {
			return err
		}
		if err := b.Set(tradeKey(f.Symbol, f.Timestamp, f.ID), val, nil); err != nil {
			return errors.Wrap(err, "batch set fill")
		}
	}
	return errors.Wrap(b.Commit(pebble.NoSync), "commit fills")
}

// LoadRecentTrades loads the most recent fills for a symbol, newest first
func (s *PebbleStore) LoadRecentTrades(symbol string, limit int) ([]orderbook.Fill, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	var fills []orderbook.Fill
	for iter.Last(); iter.Valid() && (limit <= 0 || len(fills) < limit); iter.Prev() {
		f, err := decodeFill(iter.Value())
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, errors.Wrap(iter.Error(), "iterate trades")
}

// LoadTradesSince loads fills with Timestamp >= since, oldest first.
func (s *PebbleStore) LoadTradesSince(symbol string, since int64) ([]orderbook.Fill, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: tradeSinceKey(symbol, since),
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	var fills []orderbook.Fill
	for iter.First(); iter.Valid(); iter.Next() {
		f, err := decodeFill(iter.Value())
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, errors.Wrap(iter.Error(), "iterate trades")
}

// SaveBook replaces the symbol's checkpoint and syncs.
func (s *PebbleStore) SaveBook(cp BookCheckpoint) error {
	val, err := encodeGob(cp)
	if err != nil {
		return errors.Wrapf(err, "encode checkpoint %s", cp.Symbol)
	}
	return errors.Wrapf(s.db.Set(bookKey(cp.Symbol), val, pebble.Sync), "save checkpoint %s", cp.Symbol)
}

func (s *PebbleStore) LoadBook(symbol string) (BookCheckpoint, bool, error) {
	val, closer, err := s.db.Get(bookKey(symbol))
	if errors.Is(err, pebble.ErrNotFound) {
		return BookCheckpoint{}, false, nil
	}
	if err != nil {
		return BookCheckpoint{}, false, errors.Wrapf(err, "get checkpoint %s", symbol)
	}
	defer closer.Close()

	var cp BookCheckpoint
	if err := decodeGob(val, &cp); err != nil {
		return BookCheckpoint{}, false, errors.Wrapf(err, "decode checkpoint %s", symbol)
	}
	return cp, true, nil
}

// BookSymbols lists the symbols that have a checkpoint, sorted.
func (s *PebbleStore) BookSymbols() ([]string, error) {
	prefix := []byte(prefixBook)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	var symbols []string
	for iter.First(); iter.Valid(); iter.Next() {
		symbols = append(symbols, strings.TrimPrefix(string(iter.Key()), prefixBook))
	}
	sort.Strings(symbols)
	return symbols, errors.Wrap(iter.Error(), "iterate checkpoints")
}

// TradeSymbols lists the symbols that have stored fills, sorted. It seeks
// past each symbol's fills instead of reading them.
func (s *PebbleStore) TradeSymbols() ([]string, error) {
	prefix := []byte(prefixTrade)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "new iter")
	}
	defer iter.Close()

	var symbols []string
	for valid := iter.First(); valid; {
		rest := strings.TrimPrefix(string(iter.Key()), prefixTrade)
		sym, _, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, errors.Newf("malformed trade key %q", iter.Key())
		}
		symbols = append(symbols, sym)
		valid = iter.SeekGE(keyUpperBound(tradePrefix(sym)))
	}
	return symbols, errors.Wrap(iter.Error(), "iterate trades")
}

var _ Store = (*PebbleStore)(nil)
