package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPaymentPending OrderStatus = "payment_pending"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusPickedUp       OrderStatus = "picked_up"
)

// statusOrder is the fixed lifecycle chain; transitions compare positions in it.
var statusOrder = []OrderStatus{StatusPaymentPending, StatusPreparing, StatusReady, StatusPickedUp}

func (s OrderStatus) Index() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) Valid() bool { return s.Index() >= 0 }

func (s OrderStatus) Terminal() bool { return s == StatusPickedUp }

func ParseStatus(v string) (OrderStatus, error) {
	s := OrderStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%q: %w", v, ErrInvalidStatus)
	}
	return s, nil
}

type PaymentMethod string

const (
	PaymentOnline  PaymentMethod = "online"
	PaymentOffline PaymentMethod = "offline"
)

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	switch m := PaymentMethod(v); m {
	case PaymentOnline, PaymentOffline:
		return m, nil
	default:
		return "", fmt.Errorf("%q: %w", v, ErrInvalidPaymentMethod)
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
)

type ClaimStatus string

const (
	ClaimNone     ClaimStatus = ""
	ClaimPending  ClaimStatus = "pending"
	ClaimClaimed  ClaimStatus = "claimed"
	ClaimRejected ClaimStatus = "rejected"
)

type Order struct {
	ID            string
	OrderNumber   string
	OwnerID       *string
	Items         []OrderItem
	TotalAmount   decimal.Decimal
	Status        OrderStatus
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	ManualOrder   bool
	ClaimStatus   ClaimStatus
	Contact       Contact
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots the catalog entry at the time of ordering.
type OrderItem struct {
	ItemID    string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type NewOrderParams struct {
	ID            string
	OrderNumber   string
	OwnerID       *string
	Items         []OrderItem
	PaymentMethod PaymentMethod
	Contact       Contact
	Manual        bool
	Now           time.Time
}

// NewOrder builds a fresh order. The total is always derived from the items;
// online orders start paid and in preparation, offline ones wait for payment.
func NewOrder(p NewOrderParams) (Order, error) {
	if len(p.Items) == 0 {
		return Order{}, ErrNoLineItems
	}
	total := decimal.Zero
	for _, item := range p.Items {
		if item.Quantity < 1 {
			return Order{}, fmt.Errorf("item %s: %w", item.ItemID, ErrInvalidItemQuantity)
		}
		total = total.Add(item.Subtotal())
	}

	o := Order{
		ID:            p.ID,
		OrderNumber:   p.OrderNumber,
		OwnerID:       p.OwnerID,
		Items:         p.Items,
		TotalAmount:   total,
		PaymentMethod: p.PaymentMethod,
		ManualOrder:   p.Manual,
		Contact:       p.Contact,
		CreatedAt:     p.Now,
		UpdatedAt:     p.Now,
	}
	switch p.PaymentMethod {
	case PaymentOnline:
		o.PaymentStatus = PaymentConfirmed
		o.Status = StatusPreparing
	case PaymentOffline:
		o.PaymentStatus = PaymentPending
		o.Status = StatusPaymentPending
	default:
		return Order{}, fmt.Errorf("%q: %w", p.PaymentMethod, ErrInvalidPaymentMethod)
	}
	if p.Manual {
		o.OwnerID = nil
		o.ClaimStatus = ClaimPending
	}
	return o, nil
}

// TransitionPolicy decides whether a status move is acceptable.
type TransitionPolicy struct {
	// Stepwise rejects moves that skip an intermediate status.
	Stepwise bool
}

func PolicyFromString(v string) TransitionPolicy {
	return TransitionPolicy{Stepwise: v == "stepwise"}
}

func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	fi, ti := from.Index(), to.Index()
	if ti < fi {
		return false
	}
	if p.Stepwise && ti-fi > 1 {
		return false
	}
	return true
}

// AdvanceStatus moves the order to requested. Requesting the current status
// is accepted and only bumps UpdatedAt.
func (o *Order) AdvanceStatus(requested OrderStatus, policy TransitionPolicy, now time.Time) error {
	if !requested.Valid() {
		return fmt.Errorf("%q: %w", requested, ErrInvalidStatus)
	}
	if !policy.Allows(o.Status, requested) {
		return fmt.Errorf("%s -> %s: %w", o.Status, requested, ErrIllegalStatusTransition)
	}
	o.Status = requested
	o.UpdatedAt = now
	return nil
}

// ConfirmPayment flips payment to confirmed exactly once and releases an
// order still waiting for payment into preparation.
func (o *Order) ConfirmPayment(now time.Time) error {
	if o.PaymentStatus == PaymentConfirmed {
		return ErrPaymentAlreadyConfirmed
	}
	o.PaymentStatus = PaymentConfirmed
	if o.Status == StatusPaymentPending {
		o.Status = StatusPreparing
	}
	o.UpdatedAt = now
	return nil
}

func (o *Order) Claimable() bool {
	return o.ManualOrder && o.ClaimStatus == ClaimPending
}

// Claim resolves the claim sub-state of a manual order. It never touches
// status or payment.
func (o *Order) Claim(claimantID string, claimant Contact, accept bool, now time.Time) error {
	if !o.Claimable() {
		return ErrOrderNotClaimable
	}
	if !o.Contact.Matches(claimant) {
		return ErrContactMismatch
	}
	if accept {
		owner := claimantID
		o.OwnerID = &owner
		o.ClaimStatus = ClaimClaimed
	} else {
		o.ClaimStatus = ClaimRejected
	}
	o.UpdatedAt = now
	return nil
}

func OrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", DatePrefix(day), seq)
}

func DatePrefix(day time.Time) string {
	return day.Format("20060102")
}
