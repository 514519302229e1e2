package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishFills(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, log: zap.NewNop().Sugar()}

	fills := []orderbook.Fill{
		{ID: 1, Symbol: "BTC-USDT", Price: 100, Qty: 3, Timestamp: 1700000000000000000, TakerSide: orderbook.Buy},
		{ID: 2, Symbol: "BTC-USDT", Price: 101, Qty: 1, Timestamp: 1700000000000000001, TakerSide: orderbook.Buy},
	}
	require.NoError(t, p.PublishFills(context.Background(), fills))
	require.NoError(t, p.PublishFills(context.Background(), nil))

	require.Len(t, w.msgs, 2)
	msg := w.msgs[0]
	assert.Equal(t, "BTC-USDT", string(msg.Key))
	assert.Equal(t, "1", string(msg.Headers[0].Value))

	var ev map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, float64(300), ev["notional"])
	assert.Equal(t, "buy", ev["takerSide"])
	assert.Equal(t, float64(100), ev["price"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, log: zap.NewNop().Sugar()}
	err := p.PublishFills(context.Background(), []orderbook.Fill{{ID: 1, Symbol: "BTC-USDT"}})
	assert.ErrorContains(t, err, "broker down")
}
