package application

import (
	"context"
	"time"

	catalog "github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
)

// OrderRepository persists orders. Update is a compare-and-set: it must fail
// with domain.ErrVersionConflict unless the stored version equals
// expectedVersion, and on success store the order with version+1.
type OrderRepository interface {
	Insert(ctx context.Context, o domain.Order, rec outbox.Record) error
	Get(ctx context.Context, id string) (domain.Order, error)
	Update(ctx context.Context, o domain.Order, expectedVersion int64, rec outbox.Record) error
}

// Sequencer hands out per-scope numbers with an atomic increment-and-fetch.
type Sequencer interface {
	Next(ctx context.Context, scope string) (int64, error)
}

type Catalog interface {
	GetItem(ctx context.Context, id string) (catalog.Item, error)
}

// Notifier receives committed order changes. Implementations must not block
// and must not fail the caller.
type Notifier interface {
	OrderCreated(ctx context.Context, o domain.Order)
	OrderUpdated(ctx context.Context, o domain.Order)
	PaymentConfirmed(ctx context.Context, o domain.Order)
}

type Clock func() time.Time
