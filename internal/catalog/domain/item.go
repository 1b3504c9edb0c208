package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/walkup-orders/pkg/apperr"
)

var ErrItemNotFound = apperr.New(apperr.KindNotFound, "item_not_found", "catalog item not found")

type Item struct {
	ID            string           `json:"id" yaml:"id"`
	Name          string           `json:"name" yaml:"name"`
	Price         decimal.Decimal  `json:"price" yaml:"price"`
	Available     bool             `json:"available" yaml:"available"`
	DealPrice     *decimal.Decimal `json:"dealPrice,omitempty" yaml:"deal_price,omitempty"`
	DealExpiresAt *time.Time       `json:"dealExpiresAt,omitempty" yaml:"deal_expires_at,omitempty"`
}

// DealActive reports whether a deal price applies at now. A deal without an
// expiry stays active until removed.
func (i Item) DealActive(now time.Time) bool {
	if i.DealPrice == nil {
		return false
	}
	return i.DealExpiresAt == nil || now.Before(*i.DealExpiresAt)
}

func (i Item) EffectivePrice(now time.Time) decimal.Decimal {
	if i.DealActive(now) {
		return *i.DealPrice
	}
	return i.Price
}

// MenuChangeKind classifies catalog change notifications.
type MenuChangeKind string

const (
	MenuItemCreated         MenuChangeKind = "item_created"
	MenuItemUpdated         MenuChangeKind = "item_updated"
	MenuItemDeleted         MenuChangeKind = "item_deleted"
	MenuAvailabilityChanged MenuChangeKind = "availability_changed"
)

func (k MenuChangeKind) Valid() bool {
	switch k {
	case MenuItemCreated, MenuItemUpdated, MenuItemDeleted, MenuAvailabilityChanged:
		return true
	}
	return false
}

// MenuChange is one entry of the catalog change feed.
type MenuChange struct {
	Type       MenuChangeKind `json:"type"`
	Item       Item           `json:"item"`
	OccurredAt time.Time      `json:"occurredAt"`
}
