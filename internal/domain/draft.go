package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

type LineItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type ShippingAddress struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

// OrderDraft is the pending checkout produced by the cart/shipping step.
// It is read-only for the payment pipeline and only ever cleared after an
// order has been created from it.
type OrderDraft struct {
	ID              uuid.UUID       `json:"id" validate:"required"`
	BuyerID         string          `json:"buyer_id"`
	Cart            []LineItem      `json:"cart" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Tax             decimal.Decimal `json:"tax"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Validate checks field presence and that the totals add up.
func (d *OrderDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return err
	}

	amounts := map[string]decimal.Decimal{
		"subtotal":      d.Subtotal,
		"shipping_cost": d.ShippingCost,
		"tax":           d.Tax,
		"total_price":   d.TotalPrice,
	}
	for name, v := range amounts {
		if v.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for i, item := range d.Cart {
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("cart[%d]: unit price must not be negative", i)
		}
	}

	sum := d.Subtotal.Add(d.ShippingCost).Add(d.Tax)
	if !sum.Equal(d.TotalPrice) {
		return fmt.Errorf("total_price %s does not match subtotal+shipping+tax %s", d.TotalPrice, sum)
	}
	return nil
}

// CartSnapshot is the cart as it was captured when the draft was built.
type CartSnapshot struct {
	Items      []LineItem `json:"items"`
	CapturedAt time.Time  `json:"captured_at"`
}
