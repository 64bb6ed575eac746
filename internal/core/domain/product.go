package domain

import "github.com/shopspring/decimal"

// Product is an immutable catalog entry.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
}

// Text is the string indexed for similarity search.
func (p Product) Text() string {
	return p.Title + ". " + p.Description
}
