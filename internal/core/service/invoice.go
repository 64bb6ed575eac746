package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/shopassist/internal/core/domain"
)

const invoiceRule = "=============================="

// RenderInvoice formats an order as a plain text receipt. title maps a
// product id to its display name.
func RenderInvoice(invoiceID string, order domain.Order, title func(string) string, at time.Time) string {
	var b strings.Builder
	b.WriteString(invoiceRule + "\n")
	b.WriteString("        SMART FASHION STORE\n")
	b.WriteString(invoiceRule + "\n")
	fmt.Fprintf(&b, "Invoice ID : %s\n", invoiceID)
	fmt.Fprintf(&b, "Order ID   : %s\n", order.ID)
	fmt.Fprintf(&b, "Date       : %s\n", at.Format("02-01-2006 15:04"))
	fmt.Fprintf(&b, "Payment    : %s\n", order.PaymentStatus)
	b.WriteString("\nItems Purchased:\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s (Size %s) x%d - Rs%s\n", i+1, title(item.ProductID), item.Size, item.Quantity, item.LineTotal().String())
	}
	b.WriteString("\n------------------------------\n")
	fmt.Fprintf(&b, "Subtotal      : Rs%s\n", order.Subtotal.String())
	fmt.Fprintf(&b, "Discount      : Rs%s\n", order.Discount.String())
	fmt.Fprintf(&b, "Final Amount  : Rs%s\n", order.Total.String())
	b.WriteString("------------------------------\n")
	b.WriteString("\nThank you for shopping with us!\n")
	b.WriteString(invoiceRule)
	return b.String()
}
