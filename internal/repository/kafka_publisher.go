package repository

import (
	"context"

	"IndexPulse/internal/domain/models"
	"IndexPulse/internal/domain/repository"
	pkgkafka "IndexPulse/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, b *models.MarketBar) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Symbol), barPayload(b))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, bars []*models.MarketBar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(b.Symbol),
			Value: barPayload(b),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func barPayload(b *models.MarketBar) map[string]interface{} {
	return map[string]interface{}{
		"symbol": b.Symbol,
		"t":      b.Time.Unix(),
		"o":      b.Open,
		"h":      b.High,
		"l":      b.Low,
		"c":      b.Close,
		"v":      b.Volume,
	}
}
