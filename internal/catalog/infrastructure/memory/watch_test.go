package memory

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
)

func TestStore_WatchPublishesDiff(t *testing.T) {
	path := writeMenu(t, menu)
	items, err := LoadFile(path)
	require.NoError(t, err)
	s := NewStore(items)

	var (
		mu  sync.Mutex
		got []domain.MenuChange
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, logging.Discard(), path, 10*time.Millisecond, func(_ context.Context, c []domain.MenuChange) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, c...)
			return nil
		})
	}()

	updated := `
items:
  - id: burger
    name: Burger
    price: "10.99"
    available: false
`
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(updated), 0o600))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(tmp, future, future))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, domain.MenuAvailabilityChanged, got[0].Type)
	assert.Equal(t, "burger", got[0].Item.ID)
	assert.Equal(t, domain.MenuItemDeleted, got[1].Type)
	assert.Equal(t, "fries", got[1].Item.ID)
}
