package realtime

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/walkup-orders/internal/catalog/domain"
)

// Kind names an event on the wire. The set is closed: only the payload types
// in this file implement Payload.
type Kind string

const (
	KindOrderStatusUpdated Kind = "order-status-updated"
	KindNewOrder           Kind = "new-order"
	KindPaymentConfirmed   Kind = "payment-confirmed"
	KindMenuUpdated        Kind = "menu-updated"
)

type Payload interface {
	Kind() Kind
	payload()
}

type Line struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type OrderStatusUpdated struct {
	OrderID       string          `json:"orderId"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	OrderNumber   string          `json:"orderNumber"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CustomerName  string          `json:"customerName"`
	Items         []Line          `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

type NewOrder struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	CustomerName  string          `json:"customerName"`
	Items         []Line          `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
	IsManualOrder bool            `json:"isManualOrder"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type PaymentConfirmed struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	CustomerName  string `json:"customerName"`
	PaymentStatus string `json:"paymentStatus"`
	Status        string `json:"status"`
}

type MenuUpdated struct {
	Type      catalog.MenuChangeKind `json:"type"`
	Item      catalog.Item           `json:"item"`
	Timestamp time.Time              `json:"timestamp"`
}

func (OrderStatusUpdated) Kind() Kind { return KindOrderStatusUpdated }
func (NewOrder) Kind() Kind           { return KindNewOrder }
func (PaymentConfirmed) Kind() Kind   { return KindPaymentConfirmed }
func (MenuUpdated) Kind() Kind        { return KindMenuUpdated }

func (OrderStatusUpdated) payload() {}
func (NewOrder) payload()           {}
func (PaymentConfirmed) payload()   {}
func (MenuUpdated) payload()        {}

// Envelope is the frame clients receive.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encode(p Payload) ([]byte, error) {
	return json.Marshal(Envelope{Event: string(p.Kind()), Data: p})
}

// Reply builds a control-message response frame such as "subscribed".
func Reply(event string, data any) []byte {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return []byte(`{"event":"error","data":{"code":"internal"}}`)
	}
	return b
}
