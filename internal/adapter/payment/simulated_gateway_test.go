package payment

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shopassist/internal/port"
)

func charge(t *testing.T, g *SimulatedGateway) port.PaymentResult {
	t.Helper()
	res, err := g.Charge(context.Background(), port.PaymentRequest{
		SessionID: "s1",
		Amount:    decimal.NewFromInt(1299),
		Attempt:   1,
	})
	require.NoError(t, err)
	return res
}

func TestCharge_Extremes(t *testing.T) {
	always := NewSimulatedGateway(1)
	never := NewSimulatedGateway(0)

	for i := 0; i < 50; i++ {
		res := charge(t, always)
		assert.True(t, res.Success)
		assert.True(t, strings.HasPrefix(res.TransactionID, "TXN-"))

		res = charge(t, never)
		assert.False(t, res.Success)
		assert.Empty(t, res.TransactionID)
		assert.NotEmpty(t, res.FailureReason)
	}
}

func TestCharge_SuccessRate(t *testing.T) {
	g := NewSimulatedGateway(DefaultSuccessRate, WithRand(rand.New(rand.NewSource(42))))

	const n = 5000
	ok := 0
	for i := 0; i < n; i++ {
		if charge(t, g).Success {
			ok++
		}
	}
	assert.InDelta(t, DefaultSuccessRate, float64(ok)/n, 0.03)
}

func TestCharge_Reproducible(t *testing.T) {
	a := NewSimulatedGateway(0.5, WithRand(rand.New(rand.NewSource(7))))
	b := NewSimulatedGateway(0.5, WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 20; i++ {
		assert.Equal(t, charge(t, a).Success, charge(t, b).Success)
	}
}

func TestCharge_ContextCancelled(t *testing.T) {
	g := NewSimulatedGateway(1, WithDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Charge(ctx, port.PaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefund(t *testing.T) {
	g := NewSimulatedGateway(1)
	res := charge(t, g)

	assert.Error(t, g.Refund(context.Background(), res.TransactionID, decimal.NewFromInt(5000)))
	require.NoError(t, g.Refund(context.Background(), res.TransactionID, decimal.NewFromInt(1299)))
	assert.ErrorIs(t, g.Refund(context.Background(), res.TransactionID, decimal.NewFromInt(1299)), ErrUnknownTransaction)
	assert.ErrorIs(t, g.Refund(context.Background(), "TXN-missing", decimal.NewFromInt(1)), ErrUnknownTransaction)
}
