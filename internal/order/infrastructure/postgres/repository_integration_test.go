//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
	"github.com/dmehra2102/walkup-orders/test/integration"
)

func setup(t *testing.T) (*Repository, *Sequencer, *OutboxStore) {
	t.Helper()
	pool := integration.Postgres(t)
	require.NoError(t, Migrate(context.Background(), pool))
	log := logging.Discard()
	return NewRepository(log, pool), NewSequencer(pool), NewOutboxStore(log, pool)
}

func sampleOrder() domain.Order {
	owner := "user-1"
	at := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return domain.Order{
		ID:          "5b0e4a52-7d1c-4d55-9d7e-2f0f5d1c0a01",
		OrderNumber: "20261016-0001",
		OwnerID:     &owner,
		Items: []domain.OrderItem{
			{ItemID: "burger", Name: "Burger", UnitPrice: decimal.RequireFromString("10.99"), Quantity: 2},
			{ItemID: "fries", Name: "Fries", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1},
		},
		TotalAmount:   decimal.RequireFromString("26.98"),
		Status:        domain.StatusPaymentPending,
		PaymentMethod: domain.PaymentOffline,
		PaymentStatus: domain.PaymentPending,
		Contact:       domain.Contact{Name: "Ada", Email: "ada@example.com"},
		Version:       1,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func TestRepository_RoundTripAndCAS(t *testing.T) {
	ctx := context.Background()
	repo, _, store := setup(t)
	o := sampleOrder()

	rec, err := outbox.NewRecord(ctx, "order", o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, o, rec))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	assert.True(t, o.TotalAmount.Equal(got.TotalAmount))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "burger", got.Items[0].ItemID)
	assert.True(t, got.Items[1].UnitPrice.Equal(decimal.RequireFromString("5")))
	assert.Equal(t, o.CreatedAt, got.CreatedAt)

	require.NoError(t, got.ConfirmPayment(got.UpdatedAt.Add(time.Minute)))
	require.NoError(t, repo.Update(ctx, got, 1, outbox.Record{AggregateType: "order", AggregateID: o.ID, Type: domain.EventOrderPaymentConfirmed, Payload: []byte(`{}`)}))
	assert.ErrorIs(t, repo.Update(ctx, got, 1, outbox.Record{}), domain.ErrVersionConflict)

	after, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Version)
	assert.Equal(t, domain.PaymentConfirmed, after.PaymentStatus)
	assert.Equal(t, domain.StatusPreparing, after.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	missing := sampleOrder()
	missing.ID = "missing"
	assert.ErrorIs(t, repo.Update(ctx, missing, 1, outbox.Record{}), domain.ErrOrderNotFound)

	events, err := store.LockBatch(ctx, "relay-1", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
	assert.Equal(t, "order-service", events[0].Headers["source"])

	again, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.MarkSent(ctx, []int64{events[0].ID}))
	require.NoError(t, store.MarkFailed(ctx, events[1].ID, "broker down"))

	retry, err := store.LockBatch(ctx, "relay-2", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, events[1].ID, retry[0].ID)
	assert.Equal(t, 1, retry[0].RetryCount)
}

func TestRepository_KeepsSubCentPrices(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setup(t)
	o := sampleOrder()
	o.Items = []domain.OrderItem{
		{ItemID: "refill", Name: "Refill", UnitPrice: decimal.RequireFromString("0.125"), Quantity: 3},
	}
	o.TotalAmount = decimal.RequireFromString("0.375")

	require.NoError(t, repo.Insert(ctx, o, outbox.Record{AggregateType: "order", AggregateID: o.ID, Type: domain.EventOrderCreated, Payload: []byte(`{}`)}))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "0.125", got.Items[0].UnitPrice.String())
	assert.Equal(t, "0.375", got.TotalAmount.String())
	assert.True(t, got.TotalAmount.Equal(got.Items[0].Subtotal()))
}

func TestSequencer_ConcurrentUniquePerScope(t *testing.T) {
	ctx := context.Background()
	_, seq, _ := setup(t)

	const n = 40
	var wg sync.WaitGroup
	got := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, "20261016")
			assert.NoError(t, err)
			got <- v
		}()
	}
	wg.Wait()
	close(got)

	seen := map[int64]bool{}
	for v := range got {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i])
	}

	first, err := seq.Next(ctx, "20261017")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
}
