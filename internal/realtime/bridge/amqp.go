package bridge

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP relays through a fanout exchange. Each instance binds its own
// exclusive, auto-deleted queue.
type AMQP struct {
	peerQueue
	conn     *amqp.Connection
	exchange string
}

func NewAMQP(log *slog.Logger, conn *amqp.Connection, exchange, origin string) *AMQP {
	return &AMQP{
		peerQueue: newPeerQueue(log.With("bridge", "amqp"), origin, 0),
		conn:      conn,
		exchange:  exchange,
	}
}

func (b *AMQP) Run(ctx context.Context, sink Sink) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(b.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "realtime-"+b.origin, true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}
	b.log.Info("bridge bound", "exchange", b.exchange, "queue", q.Name, "origin", b.origin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-b.queue:
			err := ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
				ContentType: "application/json",
				Body:        frame,
			})
			if err != nil {
				b.log.Warn("bridge publish failed", "err", err)
			}
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			if d, ok := b.accept(msg.Body); ok {
				sink.Deliver(d)
			}
		}
	}
}
