package storage

import (
	"fmt"
)

// Key schema:
//
//   trade:<symbol>:<timestamp>:<tradeID> → Fill (JSON)
//   book:<symbol>                        → BookCheckpoint (gob)
//
// Timestamp and trade id are zero-padded to 20 digits so lexicographic
// order is execution order.
const (
	prefixTrade = "trade:"
	prefixBook  = "book:"
)

// tradeKey returns the key for a fill
// Format: "trade:{symbol}:{timestamp}:{tradeID}"
func tradeKey(symbol string, timestamp int64, tradeID uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixTrade, symbol, timestamp, tradeID))
}

// tradePrefix returns the prefix for all fills of a symbol
// Format: "trade:{symbol}:"
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// tradeSinceKey is the first possible key at or after timestamp.
func tradeSinceKey(symbol string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:", prefixTrade, symbol, timestamp))
}

func bookKey(symbol string) []byte {
	return []byte(prefixBook + symbol)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
