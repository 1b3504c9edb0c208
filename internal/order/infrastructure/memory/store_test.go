package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
)

func TestRepository_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	o := domain.Order{ID: "o-1", Status: domain.StatusPaymentPending, Version: 1}
	require.NoError(t, repo.Insert(ctx, o, outbox.Record{Type: "OrderCreated"}))
	assert.Error(t, repo.Insert(ctx, o, outbox.Record{}))

	o.Status = domain.StatusPreparing
	require.NoError(t, repo.Update(ctx, o, 1, outbox.Record{Type: "OrderStatusUpdated"}))

	stale := o
	stale.Status = domain.StatusReady
	assert.ErrorIs(t, repo.Update(ctx, stale, 1, outbox.Record{}), domain.ErrVersionConflict)

	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, repo.Outbox(), 2)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, repo.Update(ctx, domain.Order{ID: "missing"}, 1, outbox.Record{}), domain.ErrOrderNotFound)
}

func TestRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	owner := "u-1"
	require.NoError(t, repo.Insert(ctx, domain.Order{ID: "o-1", OwnerID: &owner, Items: []domain.OrderItem{{ItemID: "a", Quantity: 1}}}, outbox.Record{}))

	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	*got.OwnerID = "u-2"

	again, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.Equal(t, "u-1", *again.OwnerID)
}

func TestSequencer_ConcurrentUnique(t *testing.T) {
	seq := NewSequencer()
	const n = 200
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), "20261016")
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for v := range results {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)

	other, err := seq.Next(context.Background(), "20261017")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}
