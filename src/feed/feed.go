package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"crossbook/src/engine"
)

// Publisher pushes executed trades to a Kafka topic, keyed by market so one
// market's trades stay ordered within a partition. A nil Publisher is valid
// and publishes nothing; publish errors are logged, never surfaced into the
// matching pass.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

type tradeEvent struct {
	ID          string `json:"id"`
	Market      string `json:"market"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Side        string `json:"side"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"`
}

func (p *Publisher) PublishTrade(ctx context.Context, t *engine.Trade) {
	if p == nil {
		return
	}
	value, err := json.Marshal(tradeEvent{
		ID:          t.ID,
		Market:      t.Market,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Price:       t.Price,
		Side:        string(t.Side),
		Size:        t.Size,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("trade_id", t.ID).Msg("Failed to encode trade event")
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.Market),
		Value: value,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("trade_id", t.ID).
			Str("market", t.Market).
			Msg("Kafka publish error")
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
