package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shopassist/internal/adapter/payment"
	"github.com/rl1809/shopassist/internal/adapter/storage"
	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/domain"
	"github.com/rl1809/shopassist/internal/core/service"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/port"
)

const (
	defaultRedisAddr = "localhost:6379"
	productID        = "p01"
	stockM           = 5
	stockL           = 3
	totalShoppers    = 50
)

type ledger interface {
	port.InventoryLedger
	SetStock(ctx context.Context, productID string, size domain.Size, quantity int) error
}

func main() {
	ctx := context.Background()

	inv, closeFn := openLedger(ctx)
	defer closeFn()

	// Only M and L carry stock, so fallback exhausts across both sizes.
	for size, qty := range map[domain.Size]int{domain.SizeM: stockM, domain.SizeL: stockL, domain.SizeS: 0, domain.SizeXL: 0} {
		if err := inv.SetStock(ctx, productID, size, qty); err != nil {
			log.Fatalf("failed to set stock: %v", err)
		}
	}

	idx := catalog.New(catalog.DemoProducts())
	sessions := session.NewStore(clock.NewSystem())
	checkout := service.NewCheckoutService(idx, inv, storage.NewMemoryOrders(), payment.NewSimulatedGateway(1))
	agent := service.NewAgentService(idx, inv, sessions, checkout, service.AgentPolicy(2))

	var added atomic.Int32
	var exhausted atomic.Int32
	var other atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalShoppers; i++ {
		wg.Add(1)
		go func(shopper int) {
			defer wg.Done()

			resp := agent.HandleTurn(ctx, fmt.Sprintf("stress-%d", shopper), fmt.Sprintf("user-%d", shopper), "add 1 "+productID+" to cart")
			switch resp.Outcome {
			case domain.OutcomeOK:
				added.Add(1)
			case domain.OutcomeInventoryExhausted:
				exhausted.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	initial := int32(stockM + stockL)
	ok := added.Load()
	sold := exhausted.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d (M=%d, L=%d)\n", initial, stockM, stockL)
	fmt.Printf("Shoppers:         %d\n", totalShoppers)
	fmt.Printf("Added to cart:    %d\n", ok)
	fmt.Printf("Exhausted:        %d\n", sold)
	fmt.Printf("Other outcomes:   %d\n", other.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if ok == initial && sold == totalShoppers-initial {
		fmt.Printf("PASS: exactly %d reservations succeeded\n", initial)
	} else {
		fmt.Printf("FAIL: expected %d added/%d exhausted, got %d/%d\n", initial, totalShoppers-initial, ok, sold)
	}

	stock, err := inv.Stock(ctx, productID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	left := 0
	for _, n := range stock {
		left += n
	}
	fmt.Printf("Final Stock: %v\n", stock)
	if left == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", left)
	}
}

// openLedger uses Redis when reachable and falls back to the in-memory ledger.
func openLedger(ctx context.Context) (ledger, func()) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = defaultRedisAddr
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable at %s, using in-memory ledger: %v", addr, err)
		_ = rdb.Close()
		return storage.NewMemoryLedger(), func() {}
	}
	log.Printf("using redis ledger at %s", addr)
	return storage.NewRedisAdapter(rdb), func() { _ = rdb.Close() }
}
