package tradelog

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

var base = time.Unix(1700000000, 0)

func fillAt(id uint64, offset time.Duration, price, qty int64) orderbook.Fill {
	return orderbook.Fill{
		ID:        id,
		Symbol:    "BTC-USDT",
		Price:     price,
		Qty:       qty,
		Timestamp: base.Add(offset).UnixNano(),
		TakerSide: orderbook.Buy,
	}
}

func ids(seq func(func(orderbook.Fill) bool)) []uint64 {
	var out []uint64
	for f := range seq {
		out = append(out, f.ID)
	}
	return out
}

func TestQuery_NewestFirstWithBounds(t *testing.T) {
	l := New()
	for i := 1; i <= 5; i++ {
		l.Record(fillAt(uint64(i), time.Duration(i)*time.Minute, 100, 1))
	}

	assert.Equal(t, []uint64{5, 4, 3, 2, 1}, ids(l.Query(0, 0)))
	assert.Equal(t, []uint64{5, 4}, ids(l.Query(0, 2)))
	assert.Equal(t, []uint64{5, 4, 3}, ids(l.Query(base.Add(3*time.Minute).UnixNano(), 0)))
	assert.Empty(t, ids(l.Query(base.Add(time.Hour).UnixNano(), 0)))
	assert.Empty(t, ids(New().Query(0, 10)))
}

func TestQuery_IsSnapshotAndLazy(t *testing.T) {
	l := New()
	l.Record(fillAt(1, 0, 100, 1))
	l.Record(fillAt(2, time.Second, 100, 1))

	seq := l.Query(0, 0)
	l.Record(fillAt(3, 2*time.Second, 100, 1))
	assert.Equal(t, []uint64{2, 1}, ids(seq), "fills recorded after Query are not visible")

	// stopping early must not touch the rest
	for f := range l.Query(0, 0) {
		assert.Equal(t, uint64(3), f.ID)
		break
	}
	assert.Equal(t, 3, l.Len())
}

func TestFirstLast(t *testing.T) {
	l := New()
	_, ok := l.Last()
	assert.False(t, ok)

	l.Load([]orderbook.Fill{fillAt(1, 0, 99, 1), fillAt(2, time.Second, 101, 2)})
	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last.ID)
	first, ok := l.First()
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.ID)
}

func TestStats(t *testing.T) {
	l := New()
	l.Record(fillAt(1, 0, 90, 5)) // outside the window
	l.Record(fillAt(2, 2*time.Hour, 100, 2))
	l.Record(fillAt(3, 3*time.Hour, 120, 1))
	l.Record(fillAt(4, 4*time.Hour, 95, 4))
	l.Record(fillAt(5, 5*time.Hour, 110, 3))

	st := l.Stats(base.Add(5*time.Hour), 3*time.Hour)
	assert.Equal(t, int64(110), st.LastPrice)
	assert.Equal(t, 4, st.Trades)
	assert.Equal(t, int64(120), st.High)
	assert.Equal(t, int64(95), st.Low)
	// 100*2 + 120*1 + 95*4 + 110*3
	assert.True(t, decimal.NewFromInt(1030).Equal(st.Volume), "volume %s", st.Volume)
	assert.True(t, decimal.NewFromInt(10).Equal(st.PriceChangePct), "change %s", st.PriceChangePct)
	assert.Equal(t, 3*time.Hour, st.Window)
}

func TestStats_EmptyWindowKeepsLastPrice(t *testing.T) {
	l := New()
	l.Record(fillAt(1, 0, 90, 5))

	st := l.Stats(base.Add(48*time.Hour), 24*time.Hour)
	assert.Equal(t, int64(90), st.LastPrice)
	assert.Zero(t, st.Trades)
	assert.True(t, st.Volume.IsZero())
	assert.True(t, st.PriceChangePct.IsZero())
}

func TestChangePct(t *testing.T) {
	assert.Equal(t, "-33.3333", ChangePct(150, 100).String())
	assert.Equal(t, "0", ChangePct(0, 100).String())
	assert.Equal(t, "0", ChangePct(100, 100).String())
}

func TestConcurrentRecordAndQuery(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			l.Record(fillAt(uint64(i), time.Duration(i), 100, 1))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			got := ids(l.Query(0, 10))
			assert.True(t, slices.IsSortedFunc(got, func(a, b uint64) int { return int(b) - int(a) }))
		}
	}()
	wg.Wait()
	assert.Equal(t, 1000, l.Len())
}
