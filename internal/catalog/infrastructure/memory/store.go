// Package memory serves catalog items from a YAML menu fixture.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

type fixture struct {
	Items []domain.Item `yaml:"items"`
}

// LoadFile reads a menu fixture of the form `items: [{id, name, price, ...}]`.
func LoadFile(path string) ([]domain.Item, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse menu %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Items))
	for _, it := range f.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("menu %s: item without id", path)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("menu %s: duplicate item %s", path, it.ID)
		}
		seen[it.ID] = true
	}
	return f.Items, nil
}

type Store struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

func NewStore(items []domain.Item) *Store {
	s := &Store{items: make(map[string]domain.Item, len(items))}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *Store) GetItem(_ context.Context, id string) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrItemNotFound)
	}
	return it, nil
}

// Replace swaps in a new menu and returns what changed, sorted by item id.
func (s *Store) Replace(items []domain.Item, now time.Time) []domain.MenuChange {
	next := make(map[string]domain.Item, len(items))
	for _, it := range items {
		next[it.ID] = it
	}

	s.mu.Lock()
	prev := s.items
	s.items = next
	s.mu.Unlock()

	var changes []domain.MenuChange
	for id, it := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			changes = append(changes, domain.MenuChange{Type: domain.MenuItemCreated, Item: it, OccurredAt: now})
		case sameItem(old, it):
		case onlyAvailabilityDiffers(old, it):
			changes = append(changes, domain.MenuChange{Type: domain.MenuAvailabilityChanged, Item: it, OccurredAt: now})
		default:
			changes = append(changes, domain.MenuChange{Type: domain.MenuItemUpdated, Item: it, OccurredAt: now})
		}
	}
	for id, it := range prev {
		if _, ok := next[id]; !ok {
			changes = append(changes, domain.MenuChange{Type: domain.MenuItemDeleted, Item: it, OccurredAt: now})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Item.ID < changes[j].Item.ID })
	return changes
}

func onlyAvailabilityDiffers(a, b domain.Item) bool {
	if a.Available == b.Available {
		return false
	}
	a.Available = b.Available
	return sameItem(a, b)
}

func sameItem(a, b domain.Item) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Available != b.Available || !a.Price.Equal(b.Price) {
		return false
	}
	if (a.DealPrice == nil) != (b.DealPrice == nil) || (a.DealPrice != nil && !a.DealPrice.Equal(*b.DealPrice)) {
		return false
	}
	if (a.DealExpiresAt == nil) != (b.DealExpiresAt == nil) || (a.DealExpiresAt != nil && !a.DealExpiresAt.Equal(*b.DealExpiresAt)) {
		return false
	}
	return true
}
