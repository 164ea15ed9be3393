package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gigchain/backend/internal/cache"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/db"
	"github.com/gigchain/backend/internal/events"
	apphttp "github.com/gigchain/backend/internal/http"
	"github.com/gigchain/backend/internal/http/handlers"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/services"
	"github.com/gigchain/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// TON
	chain, err := ton.Dial(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	verifier := ton.NewVerifier(chain, log)
	custodian, err := ton.NewCustodian(chain, cfg.EscrowWalletSeed, log)
	if err != nil {
		log.Fatal("failed to init custodian wallet", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	gigRepo := repositories.NewGigRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	proofRepo := repositories.NewProofRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	regCache := cache.NewRegistration(rdb, cfg.RegistrationCacheTTL)
	authService := services.NewAuthService(userRepo, proofRepo, regCache, cfg, log)
	gigService := services.NewGigService(gigRepo, userRepo, log)
	orderService := services.NewOrderService(orderRepo, ledgerRepo, gigRepo, userRepo, verifier, publisher, cfg, log)
	settlementService := services.NewSettlementService(orderRepo, ledgerRepo, userRepo, custodian, publisher, cfg, log)
	disputeService := services.NewDisputeService(orderRepo, settlementService, publisher, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	gigHandler := handlers.NewGigHandler(gigService, log)
	orderHandler := handlers.NewOrderHandler(orderService, settlementService, disputeService, gigService, chain.EscrowAddress(), log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, userRepo, authHandler, userHandler, gigHandler, orderHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
