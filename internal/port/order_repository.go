package port

import (
	"context"

	"github.com/rl1809/shopassist/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder appends a completed order to the order log
	CreateOrder(ctx context.Context, order domain.Order) error

	// ListOrders returns a user's orders, oldest first
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
}
