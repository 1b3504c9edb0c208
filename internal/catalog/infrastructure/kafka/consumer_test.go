package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
)

// chanReader replays messages and then blocks until ctx ends.
type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

type menuSpy struct {
	mu  sync.Mutex
	got []domain.MenuChange
}

func (s *menuSpy) PublishMenuChange(kind domain.MenuChangeKind, item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, domain.MenuChange{Type: kind, Item: item})
}

func (s *menuSpy) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type memDedup struct {
	seen map[string]bool
	fail bool
}

func (d *memDedup) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func (d *memDedup) Seen(_ context.Context, key string) (bool, error) {
	if d.fail {
		return false, errors.New("redis down")
	}
	was := d.seen[key]
	d.seen[key] = true
	return was, nil
}

type captureProducer struct {
	msgs []kafka.Message
}

func (p *captureProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestPublisherConsumerRoundTrip(t *testing.T) {
	producer := &captureProducer{}
	pub := NewPublisher(producer, "catalog.events")
	item := domain.Item{ID: "fries", Name: "Fries", Price: decimal.RequireFromString("3.50"), Available: false}
	require.NoError(t, pub.Publish(context.Background(),
		domain.MenuChange{Type: domain.MenuAvailabilityChanged, Item: item, OccurredAt: time.Now()},
	))
	require.Len(t, producer.msgs, 1)
	assert.Equal(t, "fries", string(producer.msgs[0].Key))
	assert.Equal(t, "catalog.events", producer.msgs[0].Topic)

	reader := &chanReader{msgs: make(chan kafka.Message, 8)}
	spy := &menuSpy{}
	dedup := &memDedup{seen: map[string]bool{}}
	consumer := NewConsumer(logging.Discard(), reader, spy, dedup)

	msg := producer.msgs[0]
	msg.Topic, msg.Partition, msg.Offset = "catalog.events", 0, 7
	reader.msgs <- msg
	reader.msgs <- msg // redelivery of the same offset
	bad := kafka.Message{Topic: "catalog.events", Offset: 8, Value: []byte("{")}
	reader.msgs <- bad
	unknown, _ := json.Marshal(domain.MenuChange{Type: "renamed", Item: item})
	reader.msgs <- kafka.Message{Topic: "catalog.events", Offset: 9, Value: unknown}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 4
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, 1, spy.len())
	assert.Equal(t, domain.MenuAvailabilityChanged, spy.got[0].Type)
	assert.Equal(t, "fries", spy.got[0].Item.ID)
	assert.False(t, spy.got[0].Item.Available)
	assert.True(t, reader.closed)
}

func TestConsumer_DedupFailureStillBroadcasts(t *testing.T) {
	spy := &menuSpy{}
	c := NewConsumer(logging.Discard(), &chanReader{}, spy, &memDedup{fail: true})
	value, err := json.Marshal(domain.MenuChange{Type: domain.MenuItemDeleted, Item: domain.Item{ID: "wrap"}})
	require.NoError(t, err)

	c.handle(context.Background(), kafka.Message{Topic: "catalog.events", Value: value})
	assert.Equal(t, 1, spy.len())
}
