package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
)

type Buyer struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type PaymentInfo struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// OrderRequest is the body sent to the order-creation API.
type OrderRequest struct {
	Cart            []LineItem      `json:"cart"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Buyer           Buyer           `json:"buyer"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	PaymentInfo     PaymentInfo     `json:"paymentInfo"`
}

// Order is the record persisted by the order backend.
type Order struct {
	ID          string          `json:"id"`
	Status      OrderStatus     `json:"status"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	PaymentInfo PaymentInfo     `json:"paymentInfo"`
	CreatedAt   time.Time       `json:"createdAt"`
}
