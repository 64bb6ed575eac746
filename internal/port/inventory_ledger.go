package port

import (
	"context"

	"github.com/rl1809/shopassist/internal/core/domain"
)

type InventoryLedger interface {
	// Reserve atomically decreases stock for (productID, size), returns false if insufficient
	Reserve(ctx context.Context, productID string, size domain.Size, quantity int) (bool, error)

	// Release restores stock (for rollback); unknown keys are created with the released quantity
	Release(ctx context.Context, productID string, size domain.Size, quantity int) error

	// Check reports whether any unit is available and how many
	Check(ctx context.Context, productID string, size domain.Size) (bool, int, error)

	// Stock returns every size counter known for a product
	Stock(ctx context.Context, productID string) (map[domain.Size]int, error)
}
