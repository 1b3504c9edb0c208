package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis relays over a pub/sub channel.
type Redis struct {
	peerQueue
	rdb     *redis.Client
	channel string
}

func NewRedis(log *slog.Logger, rdb *redis.Client, channel, origin string) *Redis {
	return &Redis{
		peerQueue: newPeerQueue(log.With("bridge", "redis"), origin, 0),
		rdb:       rdb,
		channel:   channel,
	}
}

// Run subscribes and publishes until ctx ends.
func (b *Redis) Run(ctx context.Context, sink Sink) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.log.Info("bridge subscribed", "channel", b.channel, "origin", b.origin)
	msgs := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-b.queue:
			if err := b.rdb.Publish(ctx, b.channel, frame).Err(); err != nil {
				b.log.Warn("bridge publish failed", "err", err)
			}
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			if d, ok := b.accept([]byte(msg.Payload)); ok {
				sink.Deliver(d)
			}
		}
	}
}
