package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Integration event types written to the outbox.
const (
	EventOrderCreated          = "OrderCreated"
	EventOrderStatusUpdated    = "OrderStatusUpdated"
	EventOrderPaymentConfirmed = "OrderPaymentConfirmed"
	EventOrderClaimed          = "OrderClaimed"
)

type EventItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type OrderCreated struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	OwnerID       *string         `json:"ownerId"`
	Items         []EventItem     `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	ManualOrder   bool            `json:"isManualOrder"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type OrderStatusUpdated struct {
	OrderID       string        `json:"orderId"`
	From          OrderStatus   `json:"from"`
	To            OrderStatus   `json:"to"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type OrderPaymentConfirmed struct {
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type OrderClaimed struct {
	OrderID     string      `json:"orderId"`
	OwnerID     *string     `json:"ownerId"`
	ClaimStatus ClaimStatus `json:"claimStatus"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func EventItems(items []OrderItem) []EventItem {
	out := make([]EventItem, 0, len(items))
	for _, it := range items {
		out = append(out, EventItem{ItemID: it.ItemID, Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return out
}

func NewOrderCreated(o Order) OrderCreated {
	return OrderCreated{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		OwnerID:       o.OwnerID,
		Items:         EventItems(o.Items),
		TotalAmount:   o.TotalAmount,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		ManualOrder:   o.ManualOrder,
		CreatedAt:     o.CreatedAt,
	}
}
