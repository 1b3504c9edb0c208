package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/pkg/idempotency"
	"github.com/dmehra2102/walkup-orders/pkg/tracing"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MenuPublisher is satisfied by *realtime.Router.
type MenuPublisher interface {
	PublishMenuChange(kind domain.MenuChangeKind, item domain.Item)
}

type DedupStore interface {
	idempotency.Checker
	Key(topic string, partition int, offset int64) string
}

// Consumer turns the catalog change feed into menu-updated broadcasts.
type Consumer struct {
	log    *slog.Logger
	reader MessageReader
	pub    MenuPublisher
	idem   DedupStore
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// NewConsumer accepts a nil idem, which disables duplicate suppression.
func NewConsumer(log *slog.Logger, reader MessageReader, pub MenuPublisher, idem DedupStore) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		pub:    pub,
		idem:   idem,
		tracer: otel.Tracer("catalog-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if c.idem != nil {
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Warn("idempotency check failed, processing anyway", "err", err)
		} else if seen {
			c.log.Info("duplicate message skipped", "key", key)
			return
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	_, span := c.tracer.Start(msgCtx, "ConsumeMenuChange")
	defer span.End()

	var change domain.MenuChange
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		span.RecordError(err)
		return
	}
	if !change.Type.Valid() || change.Item.ID == "" {
		c.log.Warn("ignoring malformed menu change", "type", change.Type, "item_id", change.Item.ID)
		return
	}
	span.SetAttributes(attribute.String("menu.change", string(change.Type)), attribute.String("item.id", change.Item.ID))

	c.pub.PublishMenuChange(change.Type, change.Item)
	c.log.Debug("menu change broadcast", "type", change.Type, "item_id", change.Item.ID)
}
