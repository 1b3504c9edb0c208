// Package realtime adapts committed order changes to realtime router events.
package realtime

import (
	"context"

	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	rt "github.com/dmehra2102/walkup-orders/internal/realtime"
)

// Publisher is the subset of *rt.Router the ledger publishes through.
type Publisher interface {
	PublishOrderUpdate(orderID string, p rt.OrderStatusUpdated)
	PublishNewOrder(p rt.NewOrder)
	PublishPaymentConfirmed(orderID string, p rt.PaymentConfirmed)
}

type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) OrderCreated(_ context.Context, o domain.Order) {
	n.pub.PublishNewOrder(rt.NewOrder{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.Contact.Name,
		Items:         lines(o.Items),
		TotalAmount:   o.TotalAmount,
		PaymentMethod: string(o.PaymentMethod),
		IsManualOrder: o.ManualOrder,
		CreatedAt:     o.CreatedAt,
	})
}

func (n *Notifier) OrderUpdated(_ context.Context, o domain.Order) {
	n.pub.PublishOrderUpdate(o.ID, rt.OrderStatusUpdated{
		OrderID:       o.ID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		OrderNumber:   o.OrderNumber,
		UpdatedAt:     o.UpdatedAt,
		CustomerName:  o.Contact.Name,
		Items:         lines(o.Items),
		TotalAmount:   o.TotalAmount,
	})
}

func (n *Notifier) PaymentConfirmed(_ context.Context, o domain.Order) {
	n.pub.PublishPaymentConfirmed(o.ID, rt.PaymentConfirmed{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerName:  o.Contact.Name,
		PaymentStatus: string(o.PaymentStatus),
		Status:        string(o.Status),
	})
}

func lines(items []domain.OrderItem) []rt.Line {
	out := make([]rt.Line, 0, len(items))
	for _, it := range items {
		out = append(out, rt.Line{ItemID: it.ItemID, Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return out
}
