package http

import (
	"time"

	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/http/handlers"
	"github.com/gigchain/backend/internal/middleware"
	"github.com/gigchain/backend/internal/rbac"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	userRepo *repositories.UserRepo,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	gigHandler *handlers.GigHandler,
	orderHandler *handlers.OrderHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Auth (public)
	api.Post("/auth/challenge", authHandler.Challenge)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/signup", authHandler.Signup)
	api.Get("/auth/status", authHandler.Status)

	// Public catalog
	api.Get("/gigs", gigHandler.ListGigs)
	api.Get("/gigs/:id", gigHandler.GetGig)
	api.Get("/gigs/:id/deposit-info", orderHandler.DepositInfo)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, userRepo, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Put("/me/payout", middleware.RequirePermission(rbac.PermSetPayout), userHandler.UpdatePayout)

	// Gigs (seller side)
	protected.Post("/gigs", gigHandler.CreateGig)
	protected.Get("/gigs/my/list", gigHandler.MyGigs)
	protected.Put("/gigs/:id", gigHandler.UpdateGig)
	protected.Put("/gigs/:id/active", gigHandler.SetActive)

	// Orders
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/ledger", orderHandler.GetLedger)
	protected.Post("/orders/:id/proof", orderHandler.SubmitProof)
	protected.Post("/orders/:id/deliver", orderHandler.MarkDelivered)
	protected.Post("/orders/:id/approve", orderHandler.Approve)
	protected.Post("/orders/:id/dispute", middleware.RequirePermission(rbac.PermFileDispute), orderHandler.Dispute)

	// Admin
	admin := protected.Group("/admin", middleware.RequirePermission(rbac.PermResolveDispute))
	admin.Post("/orders/:id/resolve", orderHandler.ResolveDispute)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
