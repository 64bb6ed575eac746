package port

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	SessionID string
	UserID    string
	Amount    decimal.Decimal
	Attempt   int
}

type PaymentResult struct {
	Success       bool
	TransactionID string
	FailureReason string
}

type PaymentGateway interface {
	// Charge attempts a payment; a decline is a result, not an error
	Charge(ctx context.Context, req PaymentRequest) (PaymentResult, error)

	// Refund reverses a successful charge
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) error
}
