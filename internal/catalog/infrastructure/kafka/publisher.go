package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes menu changes to the catalog change feed, keyed by item id.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, changes ...domain.MenuChange) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(changes))
	for _, ch := range changes {
		b, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("encode change for %s: %w", ch.Item.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic:   p.topic,
			Key:     []byte(ch.Item.ID),
			Value:   b,
			Headers: tracing.InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte(ch.Type)}}),
		})
	}
	return p.producer.WriteMessages(ctx, msgs...)
}
