// Package kafka builds the writer the outbox relay publishes order events
// through.
package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns a writer without a fixed topic; every message names its
// own, which lets one writer serve the order feed and the catalog feed.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
