package middleware

import (
	"context"
	"strings"

	"github.com/gigchain/backend/internal/auth"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID = "user_id"
	CtxWallet = "wallet"
	CtxRoles  = "roles"
)

type userGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func AuthMiddleware(cfg *config.Config, users userGetter, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		// Optional hardening: a token minted for a wallet the account no
		// longer uses stops working immediately.
		if cfg.SignOutOnWalletChange {
			user, err := users.GetByID(c.Context(), claims.UserID)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown user"})
			}
			if user.WalletAddress != claims.Wallet {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "wallet changed, sign in again"})
			}
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxWallet, claims.Wallet)
		c.Locals(CtxRoles, claims.Roles)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetWallet(c *fiber.Ctx) string {
	w, _ := c.Locals(CtxWallet).(string)
	return w
}

func GetRoles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(CtxRoles).([]string)
	return roles
}

func IsAdmin(c *fiber.Ctx) bool {
	for _, r := range GetRoles(c) {
		if r == models.RoleAdmin {
			return true
		}
	}
	return false
}

// RequirePermission gates a route on the role permission table.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.HasPermission(GetRoles(c), permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
		}
		return c.Next()
	}
}
