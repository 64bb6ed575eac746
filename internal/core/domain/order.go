package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Fulfillment string

const (
	FulfillmentOnline Fulfillment = "online"
	FulfillmentStore  Fulfillment = "store"
)

type PaymentStatus string

const (
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusPayAtStore PaymentStatus = "pay_at_store"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Size      Size            `json:"size"`
	Quantity  int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a completed checkout. It is never mutated after creation.
type Order struct {
	ID            string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Fulfillment   Fulfillment     `json:"fulfillment"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
