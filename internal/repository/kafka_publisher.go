package repository

import (
	"context"
	"fmt"

	"MarketFeed/internal/domain/models"
	"MarketFeed/pkg/kafka"
)

// KafkaPublisher streams refreshed quotes to a Kafka topic, keyed by
// symbol so one symbol's ticks stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishQuotes(ctx context.Context, quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(quotes))
	for _, q := range quotes {
		messages = append(messages, kafka.Message{
			Key:   []byte(q.Symbol),
			Value: q,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, messages); err != nil {
		return fmt.Errorf("publish %d quotes to %s: %w", len(quotes), p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
