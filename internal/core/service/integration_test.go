package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shopassist/internal/adapter/payment"
	"github.com/rl1809/shopassist/internal/adapter/storage"
	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/service"
	"github.com/rl1809/shopassist/internal/core/session"
)

type liveEnv struct {
	redis  *redis.Client
	ledger *storage.RedisAdapter
	orders *storage.MySQLAdapter
}

func setupLiveEnv(t *testing.T) *liveEnv {
	t.Helper()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/shopassist?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	orders := storage.NewMySQLAdapter(db)
	require.NoError(t, orders.EnsureSchema(context.Background()))

	return &liveEnv{redis: rdb, ledger: storage.NewRedisAdapter(rdb), orders: orders}
}

func TestIntegration_BrowseAddCheckout(t *testing.T) {
	env := setupLiveEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Seed(ctx, catalog.DemoStock()))

	idx := catalog.New(catalog.DemoProducts())
	sessions := session.NewStore(clock.NewSystem())
	checkout := service.NewCheckoutService(idx, env.ledger, env.orders, payment.NewSimulatedGateway(1),
		service.WithOrderIDs(uuid.NewString),
	)
	agent := service.NewAgentService(idx, env.ledger, sessions, checkout, service.AgentPolicy(2))

	userID := "it-" + uuid.NewString()[:8]
	agent.HandleTurn(ctx, userID, userID, "show me shirts")
	resp := agent.HandleTurn(ctx, userID, userID, "add 2 of the first one size L")
	require.Equal(t, domain.OutcomeOK, resp.Outcome, resp.Reply)

	_, left, err := env.ledger.Check(ctx, "p01", domain.SizeL)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	resp = agent.HandleTurn(ctx, userID, userID, "checkout")
	require.Equal(t, domain.OutcomeOK, resp.Outcome, resp.Reply)

	stored, err := env.orders.ListOrders(ctx, userID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.PaymentStatusPaid, stored[0].PaymentStatus)
	require.Len(t, stored[0].Items, 1)
	assert.Equal(t, 2, stored[0].Items[0].Quantity)
}

func TestIntegration_ConcurrentReservationsNeverOversell(t *testing.T) {
	env := setupLiveEnv(t)
	ctx := context.Background()

	const shoppers = 30
	require.NoError(t, env.ledger.Seed(ctx, map[string]map[domain.Size]int{
		"p09": {domain.SizeM: 4, domain.SizeL: 3, domain.SizeS: 0, domain.SizeXL: 0},
	}))

	idx := catalog.New(catalog.DemoProducts())
	sessions := session.NewStore(clock.NewSystem())
	checkout := service.NewCheckoutService(idx, env.ledger, storage.NewMemoryOrders(), payment.NewSimulatedGateway(1))
	agent := service.NewAgentService(idx, env.ledger, sessions, checkout, service.AgentPolicy(2))

	var added atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("it-stress-%d", n)
			if agent.HandleTurn(ctx, id, id, "add 1 p09 to cart").Outcome == domain.OutcomeOK {
				added.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(7), added.Load())
	stock, err := env.ledger.Stock(ctx, "p09")
	require.NoError(t, err)
	for size, n := range stock {
		assert.Zero(t, n, "size %s", size)
	}
}
