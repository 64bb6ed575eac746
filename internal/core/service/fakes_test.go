package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/port"
)

var testNow = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

// Mock InventoryLedger
type fakeLedger struct {
	mu    sync.Mutex
	stock map[domain.StockKey]int
	err   error
}

func newFakeLedger(stock map[string]map[domain.Size]int) *fakeLedger {
	l := &fakeLedger{stock: make(map[domain.StockKey]int)}
	for pid, sizes := range stock {
		for size, n := range sizes {
			l.stock[domain.StockKey{ProductID: pid, Size: size}] = n
		}
	}
	return l
}

func (l *fakeLedger) Reserve(_ context.Context, pid string, size domain.Size, qty int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	key := domain.StockKey{ProductID: pid, Size: size}
	if l.stock[key] < qty {
		return false, nil
	}
	l.stock[key] -= qty
	return true, nil
}

func (l *fakeLedger) Release(_ context.Context, pid string, size domain.Size, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[domain.StockKey{ProductID: pid, Size: size}] += qty
	return nil
}

func (l *fakeLedger) Check(_ context.Context, pid string, size domain.Size) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, 0, l.err
	}
	n := l.stock[domain.StockKey{ProductID: pid, Size: size}]
	return n > 0, n, nil
}

func (l *fakeLedger) Stock(_ context.Context, pid string) (map[domain.Size]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.Size]int)
	for k, n := range l.stock {
		if k.ProductID == pid {
			out[k.Size] = n
		}
	}
	return out, nil
}

func (l *fakeLedger) get(pid string, size domain.Size) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[domain.StockKey{ProductID: pid, Size: size}]
}

func (l *fakeLedger) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := 0
	for _, n := range l.stock {
		sum += n
	}
	return sum
}

// Mock OrderRepository
type fakeOrders struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (o *fakeOrders) CreateOrder(_ context.Context, order domain.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.orders = append(o.orders, order)
	return nil
}

func (o *fakeOrders) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	var out []domain.Order
	for _, ord := range o.orders {
		if ord.UserID == userID {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (o *fakeOrders) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.orders)
}

// scriptedGateway answers charges from a fixed script; past its end every
// charge succeeds.
type scriptedGateway struct {
	mu      sync.Mutex
	script  []bool
	charges []port.PaymentRequest
	refunds []string
	err     error
}

func (g *scriptedGateway) Charge(_ context.Context, req port.PaymentRequest) (port.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return port.PaymentResult{}, g.err
	}
	g.charges = append(g.charges, req)
	ok := true
	if n := len(g.charges); n <= len(g.script) {
		ok = g.script[n-1]
	}
	if !ok {
		return port.PaymentResult{FailureReason: "declined"}, nil
	}
	return port.PaymentResult{Success: true, TransactionID: fmt.Sprintf("TXN%d", len(g.charges))}, nil
}

func (g *scriptedGateway) Refund(_ context.Context, txID string, _ decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, txID)
	return nil
}

func (g *scriptedGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

type recordingPublisher struct {
	mu      sync.Mutex
	actions []domain.Action
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, actions []domain.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, actions...)
	return p.err
}

type stubPhrases struct {
	out string
	err error
}

func (p stubPhrases) Phrase(context.Context, string, string, map[string]string) (string, error) {
	return p.out, p.err
}

var errBoom = errors.New("boom")

type fixture struct {
	catalog  *catalog.Index
	ledger   *fakeLedger
	orders   *fakeOrders
	gateway  *scriptedGateway
	sessions *session.Store
	checkout *CheckoutService
}

func newFixture(script ...bool) *fixture {
	f := &fixture{
		catalog:  catalog.New(catalog.DemoProducts()),
		ledger:   newFakeLedger(catalog.DemoStock()),
		orders:   &fakeOrders{},
		gateway:  &scriptedGateway{script: script},
		sessions: session.NewStore(clock.NewFixed(testNow)),
	}
	f.checkout = NewCheckoutService(f.catalog, f.ledger, f.orders, f.gateway,
		WithCheckoutClock(clock.NewFixed(testNow)),
	)
	return f
}

func (f *fixture) agent(opts ...AgentOption) *AgentService {
	opts = append([]AgentOption{WithAgentClock(clock.NewFixed(testNow))}, opts...)
	return NewAgentService(f.catalog, f.ledger, f.sessions, f.checkout, AgentPolicy(2), opts...)
}

func (f *fixture) dialogue(opts ...DialogueOption) *DialogueService {
	opts = append([]DialogueOption{
		WithDialogueClock(clock.NewFixed(testNow)),
		WithInvoiceIDs(func() string { return "abcd1234" }),
	}, opts...)
	return NewDialogueService(f.catalog, f.ledger, f.sessions, f.checkout, DialoguePolicy(2, DefaultOffers()), opts...)
}
