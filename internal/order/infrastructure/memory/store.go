// Package memory holds single-process adapters for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
)

type Repository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox []outbox.Record
}

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Insert(_ context.Context, o domain.Order, rec outbox.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.orders[o.ID] = clone(o)
	r.outbox = append(r.outbox, rec)
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	return clone(o), nil
}

func (r *Repository) Update(_ context.Context, o domain.Order, expectedVersion int64, rec outbox.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrOrderNotFound)
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	o.Version = expectedVersion + 1
	r.orders[o.ID] = clone(o)
	r.outbox = append(r.outbox, rec)
	return nil
}

// Outbox returns a copy of the records written so far.
func (r *Repository) Outbox() []outbox.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Record(nil), r.outbox...)
}

func clone(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.OwnerID != nil {
		owner := *o.OwnerID
		o.OwnerID = &owner
	}
	return o
}

type Sequencer struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{counts: make(map[string]int64)}
}

func (s *Sequencer) Next(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[scope]++
	return s.counts[scope], nil
}
