package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/shopassist/internal/adapter/handler"
	"github.com/rl1809/shopassist/internal/adapter/messaging"
	"github.com/rl1809/shopassist/internal/adapter/payment"
	"github.com/rl1809/shopassist/internal/adapter/storage"
	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/config"
	"github.com/rl1809/shopassist/internal/core/catalog"
	"github.com/rl1809/shopassist/internal/core/service"
	"github.com/rl1809/shopassist/internal/core/session"
	"github.com/rl1809/shopassist/internal/logger"
	"github.com/rl1809/shopassist/internal/metrics"
	"github.com/rl1809/shopassist/internal/port"
)

const (
	shutdownTimeout = 5 * time.Second
	redisPoolSize   = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []func() error

	// Catalog
	catalogOpts := []catalog.Option{catalog.WithLogger(zl)}
	if cfg.Catalog.Embedder == "hash" {
		catalogOpts = append(catalogOpts, catalog.WithEmbedder(catalog.NewHashEmbedder(cfg.Catalog.Dimensions)))
	}
	idx := catalog.New(catalog.DemoProducts(), catalogOpts...)
	if err := idx.Init(ctx); err != nil {
		zl.Warn("catalog similarity disabled", zap.Error(err))
	}

	// Inventory ledger
	var ledger port.InventoryLedger
	switch cfg.Storage.Ledger {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: redisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatal("failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		closers = append(closers, rdb.Close)
		redisLedger := storage.NewRedisAdapter(rdb)
		if err := redisLedger.Seed(ctx, catalog.DemoStock()); err != nil {
			zl.Fatal("failed to seed stock", zap.Error(err))
		}
		ledger = redisLedger
		zl.Info("inventory ledger on redis", zap.String("addr", cfg.Redis.Addr))
	default:
		memLedger := storage.NewMemoryLedger()
		if err := memLedger.Seed(ctx, catalog.DemoStock()); err != nil {
			zl.Fatal("failed to seed stock", zap.Error(err))
		}
		ledger = memLedger
		zl.Info("inventory ledger in memory")
	}

	// Order log
	var orders port.OrderRepository = storage.NewMemoryOrders()
	var checkoutOpts []service.CheckoutOption
	if cfg.MySQL.DSN != "" {
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			zl.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			zl.Fatal("failed to ping mysql", zap.Error(err))
		}
		closers = append(closers, db.Close)

		mysqlOrders := storage.NewMySQLAdapter(db)
		if err := mysqlOrders.EnsureSchema(ctx); err != nil {
			zl.Fatal("failed to apply schema", zap.Error(err))
		}
		orders = mysqlOrders
		// sequential ids would collide across restarts
		checkoutOpts = append(checkoutOpts, service.WithOrderIDs(uuid.NewString))
		zl.Info("order log on mysql")
	}

	// Action events
	var publisher port.EventPublisher = port.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := messaging.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, zl)
		if err != nil {
			zl.Fatal("failed to connect amqp", zap.Error(err))
		}
		closers = append(closers, amqpPublisher.Close)
		publisher = amqpPublisher
		zl.Info("publishing actions", zap.String("exchange", cfg.AMQP.Exchange))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry, "shopassist")
	clk := clock.NewSystem()

	// Services
	gateway := payment.NewSimulatedGateway(cfg.Payment.SuccessRate, payment.WithLogger(zl))
	sessions := session.NewStore(clk)
	checkoutOpts = append(checkoutOpts,
		service.WithCheckoutLogger(zl),
		service.WithCheckoutMetrics(m),
		service.WithCheckoutClock(clk),
	)
	checkout := service.NewCheckoutService(idx, ledger, orders, gateway, checkoutOpts...)

	agent := service.NewAgentService(idx, ledger, sessions, checkout,
		service.AgentPolicy(cfg.Agent.MaxPaymentAttempts),
		service.WithAgentLogger(zl),
		service.WithAgentMetrics(m),
		service.WithAgentClock(clk),
		service.WithPublisher(publisher),
		service.WithSearchK(cfg.Agent.SearchK),
	)
	dialogue := service.NewDialogueService(idx, ledger, sessions, checkout,
		service.DialoguePolicy(cfg.Dialogue.MaxPaymentAttempts, offers(cfg.Dialogue.Offers)),
		service.WithDialogueLogger(zl),
		service.WithDialogueMetrics(m),
		service.WithDialogueClock(clk),
		service.WithDialoguePublisher(publisher),
	)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(zl)))
	handler.RegisterAssistantServer(grpcServer, handler.NewGRPCHandler(agent, dialogue))

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("port", cfg.GRPC.Port), zap.Error(err))
	}

	go func() {
		zl.Info("gRPC server listening", zap.String("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.NewHTTPHandler(agent, dialogue, zl), registry)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown", zap.Error(err))
	}
	zl.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	zl.Info("gRPC server stopped")

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			zl.Warn("close connection", zap.Error(err))
		}
	}
	zl.Info("connections closed")
}

func offers(rows []config.OfferConfig) []service.Offer {
	out := make([]service.Offer, 0, len(rows))
	for _, r := range rows {
		out = append(out, service.Offer{Code: r.Code, Label: r.Label, Amount: r.Amount})
	}
	return out
}
