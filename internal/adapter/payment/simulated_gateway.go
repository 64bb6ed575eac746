// Package payment holds payment gateway adapters.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/shopassist/internal/port"
)

// DefaultSuccessRate is the share of simulated charges that go through.
const DefaultSuccessRate = 0.7

var ErrUnknownTransaction = errors.New("unknown transaction")

type Option func(*SimulatedGateway)

// WithRand makes outcomes reproducible.
func WithRand(r *rand.Rand) Option {
	return func(g *SimulatedGateway) { g.rng = r }
}

// WithDelay simulates provider latency.
func WithDelay(d time.Duration) Option {
	return func(g *SimulatedGateway) { g.delay = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *SimulatedGateway) { g.logger = l }
}

// SimulatedGateway approves a charge with probability SuccessRate. No money
// moves.
type SimulatedGateway struct {
	SuccessRate float64

	mu       sync.Mutex
	rng      *rand.Rand
	charged  map[string]decimal.Decimal
	refunded map[string]bool
	delay    time.Duration
	logger   *zap.Logger
}

var _ port.PaymentGateway = (*SimulatedGateway)(nil)

func NewSimulatedGateway(successRate float64, opts ...Option) *SimulatedGateway {
	g := &SimulatedGateway{
		SuccessRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		charged:     make(map[string]decimal.Decimal),
		refunded:    make(map[string]bool),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SimulatedGateway) Charge(ctx context.Context, req port.PaymentRequest) (port.PaymentResult, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return port.PaymentResult{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rng.Float64() >= g.SuccessRate {
		g.logger.Info("simulated payment declined",
			zap.String("session_id", req.SessionID),
			zap.String("amount", req.Amount.String()),
			zap.Int("attempt", req.Attempt),
		)
		return port.PaymentResult{FailureReason: "card declined"}, nil
	}

	txID := "TXN-" + uuid.NewString()
	g.charged[txID] = req.Amount
	g.logger.Info("simulated payment approved",
		zap.String("session_id", req.SessionID),
		zap.String("transaction_id", txID),
		zap.String("amount", req.Amount.String()),
	)
	return port.PaymentResult{Success: true, TransactionID: txID}, nil
}

func (g *SimulatedGateway) Refund(_ context.Context, transactionID string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	charged, ok := g.charged[transactionID]
	if !ok || g.refunded[transactionID] {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if amount.GreaterThan(charged) {
		return fmt.Errorf("refund %s exceeds charge %s", amount, charged)
	}
	g.refunded[transactionID] = true
	return nil
}
