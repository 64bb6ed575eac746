package handler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shopassist/internal/adapter/payment"
	"github.com/rl1809/shopassist/internal/adapter/storage"
	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/service"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/metrics"
)

type stack struct {
	agent    *service.AgentService
	dialogue *service.DialogueService
	ledger   *storage.MemoryLedger
	registry *prometheus.Registry
}

// newStack wires the in-memory adapters behind both conversation surfaces.
// Every charge succeeds.
func newStack(t *testing.T) *stack {
	t.Helper()

	ledger := storage.NewMemoryLedger()
	require.NoError(t, ledger.Seed(context.Background(), catalog.DemoStock()))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "shopassist")
	idx := catalog.New(catalog.DemoProducts())
	sessions := session.NewStore(clock.NewSystem())
	checkout := service.NewCheckoutService(idx, ledger, storage.NewMemoryOrders(), payment.NewSimulatedGateway(1),
		service.WithCheckoutMetrics(m),
	)

	return &stack{
		agent: service.NewAgentService(idx, ledger, sessions, checkout, service.AgentPolicy(2),
			service.WithAgentMetrics(m),
		),
		dialogue: service.NewDialogueService(idx, ledger, sessions, checkout,
			service.DialoguePolicy(2, service.DefaultOffers()),
			service.WithDialogueMetrics(m),
		),
		ledger:   ledger,
		registry: reg,
	}
}
