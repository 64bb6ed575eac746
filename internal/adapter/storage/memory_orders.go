package storage

import (
	"context"
	"sync"

	"github.com/rl1809/shopassist/internal/core/domain"
)

// MemoryOrders is an append-only order log held in process memory.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders []domain.Order
	ids    map[string]bool
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{ids: make(map[string]bool)}
}

func (m *MemoryOrders) CreateOrder(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[order.ID] {
		return ErrDuplicateOrder
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders = append(m.orders, order)
	m.ids[order.ID] = true
	return nil
}

func (m *MemoryOrders) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			o.Items = append([]domain.OrderItem(nil), o.Items...)
			out = append(out, o)
		}
	}
	return out, nil
}
