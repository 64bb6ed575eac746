package service

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/shopassist/internal/core/domain"
)

func TestRenderInvoice(t *testing.T) {
	order := domain.Order{
		ID: "ORD00007",
		Items: []domain.OrderItem{
			{ProductID: "p01", Size: domain.SizeM, Quantity: 2, Price: decimal.NewFromInt(1299)},
		},
		Subtotal:      decimal.NewFromInt(2598),
		Discount:      decimal.NewFromInt(300),
		Total:         decimal.NewFromInt(2298),
		PaymentStatus: domain.PaymentStatusPaid,
	}

	out := RenderInvoice("deadbeef", order, strings.ToUpper, testNow)

	assert.Contains(t, out, "Invoice ID : deadbeef")
	assert.Contains(t, out, "Order ID   : ORD00007")
	assert.Contains(t, out, "Date       : 01-03-2025 10:30")
	assert.Contains(t, out, "1. P01 (Size M) x2 - Rs2598")
	assert.Contains(t, out, "Discount      : Rs300")
	assert.Contains(t, out, "Final Amount  : Rs2298")
}
