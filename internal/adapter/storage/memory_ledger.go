package storage

import (
	"context"
	"sync"

	"github.com/rl1809/shopassist/internal/core/domain"
)

type stockCell struct {
	mu  sync.Mutex
	qty int
}

// MemoryLedger keeps stock in process memory. Each (product, size) counter
// has its own mutex; the map lock is only taken to find or create a cell.
type MemoryLedger struct {
	mu    sync.RWMutex
	cells map[domain.StockKey]*stockCell
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{cells: make(map[domain.StockKey]*stockCell)}
}

func (m *MemoryLedger) cell(key domain.StockKey, create bool) *stockCell {
	m.mu.RLock()
	c, ok := m.cells[key]
	m.mu.RUnlock()
	if ok || !create {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[key]; ok {
		return c
	}
	c = &stockCell{}
	m.cells[key] = c
	return c
}

func (m *MemoryLedger) Reserve(_ context.Context, productID string, size domain.Size, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}
	c := m.cell(domain.StockKey{ProductID: productID, Size: size}, false)
	if c == nil {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qty < quantity {
		return false, nil
	}
	c.qty -= quantity
	return true, nil
}

func (m *MemoryLedger) Release(_ context.Context, productID string, size domain.Size, quantity int) error {
	c := m.cell(domain.StockKey{ProductID: productID, Size: size}, true)
	c.mu.Lock()
	c.qty += quantity
	c.mu.Unlock()
	return nil
}

func (m *MemoryLedger) Check(_ context.Context, productID string, size domain.Size) (bool, int, error) {
	c := m.cell(domain.StockKey{ProductID: productID, Size: size}, false)
	if c == nil {
		return false, 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qty > 0, c.qty, nil
}

func (m *MemoryLedger) Stock(_ context.Context, productID string) (map[domain.Size]int, error) {
	m.mu.RLock()
	cells := make(map[domain.Size]*stockCell)
	for key, c := range m.cells {
		if key.ProductID == productID {
			cells[key.Size] = c
		}
	}
	m.mu.RUnlock()

	out := make(map[domain.Size]int, len(cells))
	for size, c := range cells {
		c.mu.Lock()
		out[size] = c.qty
		c.mu.Unlock()
	}
	return out, nil
}

func (m *MemoryLedger) SetStock(_ context.Context, productID string, size domain.Size, quantity int) error {
	c := m.cell(domain.StockKey{ProductID: productID, Size: size}, true)
	c.mu.Lock()
	c.qty = quantity
	c.mu.Unlock()
	return nil
}

// Seed sets the stock of every listed (product, size).
func (m *MemoryLedger) Seed(ctx context.Context, stock map[string]map[domain.Size]int) error {
	for productID, sizes := range stock {
		for size, n := range sizes {
			if err := m.SetStock(ctx, productID, size, n); err != nil {
				return err
			}
		}
	}
	return nil
}
