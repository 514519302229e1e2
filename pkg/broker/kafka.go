// Package broker publishes executed fills to downstream consumers.
package broker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbook/pkg/app/core/orderbook"
)

// Publisher delivers fills to an external stream.
type Publisher interface {
	PublishFills(ctx context.Context, fills []orderbook.Fill) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishFills(context.Context, []orderbook.Fill) error { return nil }
func (NopPublisher) Close() error                                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per fill, keyed by symbol so a
// market's fills stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.SugaredLogger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log,
	}
}

// FillEvent is the message payload.
type FillEvent struct {
	orderbook.Fill
	Notional int64 `json:"notional"`
}

func messages(fills []orderbook.Fill) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(fills))
	for _, f := range fills {
		val, err := json.Marshal(FillEvent{Fill: f, Notional: f.Notional()})
		if err != nil {
			return nil, errors.Wrapf(err, "encode fill %d", f.ID)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(f.Symbol),
			Value: val,
			Time:  time.Unix(0, f.Timestamp),
			Headers: []kafka.Header{
				{Key: "fill-id", Value: []byte(strconv.FormatUint(f.ID, 10))},
			},
		})
	}
	return msgs, nil
}

func (p *KafkaPublisher) PublishFills(ctx context.Context, fills []orderbook.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	msgs, err := messages(fills)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Warnw("publish_fills_failed", "symbol", fills[0].Symbol, "count", len(fills), "err", err)
		return errors.Wrap(err, "publish fills")
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*KafkaPublisher)(nil)
)
