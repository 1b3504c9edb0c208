package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmehra2102/walkup-orders/pkg/tracing"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Record is what a repository writes alongside an aggregate change.
type Record struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
}

// NewRecord marshals payload and captures the caller's trace context.
func NewRecord(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) (Record, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Record{}, err
	}
	return Record{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       b,
		Headers:       map[string]string{"source": "order-service"},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}

// Event is a stored outbox row as seen by the relay.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}
