package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/pkg/logging"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	args := m.Called(ctx, relayID, batchSize, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockStore) MarkSent(ctx context.Context, ids []int64) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

type fakeProducer struct {
	sent []kafka.Message
	fail map[string]bool
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if p.fail[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		p.sent = append(p.sent, m)
	}
	return nil
}

func TestRelay_Tick(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := new(MockStore)
	producer := &fakeProducer{fail: map[string]bool{"order-2": true}}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")

	events := []Event{
		{ID: 1, AggregateType: "order", AggregateID: "order-1", Type: "OrderCreated", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateType: "order", AggregateID: "order-2", Type: "OrderCreated", Payload: []byte(`{}`)},
	}
	store.On("LockBatch", ctx, "relay-1", 100, 5*time.Second).Return(events, nil)
	store.On("MarkFailed", ctx, int64(2), "broker unavailable").Return(nil)
	store.On("MarkSent", ctx, []int64{1}).Return(nil)

	// Act
	n, err := relay.Tick(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, producer.sent, 1)
	msg := producer.sent[0]
	assert.Equal(t, "order.events", msg.Topic)
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("OrderCreated")})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "traceparent", Value: []byte("00-abc-def-01")})
	store.AssertExpectations(t)
}

func TestRelay_TickEmpty(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), &fakeProducer{}, "t"), "relay-1", WithBatchSize(10))

	store.On("LockBatch", ctx, "relay-1", 10, 5*time.Second).Return(nil, nil)

	n, err := relay.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := new(MockStore)
	store.On("LockBatch", mock.Anything, "relay-1", 100, 5*time.Second).Return(nil, nil)
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), &fakeProducer{}, "t"), "relay-1", WithInterval(5*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord(context.Background(), "order", "order-1", "OrderCreated", map[string]string{"orderId": "order-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(rec.Payload))
	assert.Equal(t, "order-service", rec.Headers["source"])
}

func TestDispatcher_SingleTraceparent(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(logging.Discard(), producer, "order.events")

	err := d.Dispatch(context.Background(), Event{
		ID:            7,
		AggregateType: "order",
		AggregateID:   "order-7",
		Type:          "OrderStatusUpdated",
		Payload:       []byte(`{}`),
		Headers:       map[string]string{"source": "order-service", "traceparent": "00-old-old-00"},
		Traceparent:   "00-abc-def-01",
	})
	require.NoError(t, err)

	require.Len(t, producer.sent, 1)
	var traceparents []string
	for _, h := range producer.sent[0].Headers {
		if h.Key == "traceparent" {
			traceparents = append(traceparents, string(h.Value))
		}
	}
	assert.Equal(t, []string{"00-abc-def-01"}, traceparents)
	assert.Len(t, producer.sent[0].Headers, 4)
}
