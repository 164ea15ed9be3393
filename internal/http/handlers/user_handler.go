package handlers

import (
	"github.com/gigchain/backend/internal/http/dto"
	"github.com/gigchain/backend/internal/middleware"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

type UserHandler struct {
	users *repositories.UserRepo
	log   *zap.Logger
}

func NewUserHandler(users *repositories.UserRepo, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), middleware.GetUserID(c))
	if err != nil {
		h.log.Error("get user failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

// UpdatePayout sets where settlements are sent. Clearing it falls back to
// the login wallet.
func (h *UserHandler) UpdatePayout(c *fiber.Ctx) error {
	var req dto.UpdatePayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if req.PayoutAddress != "" {
		if _, err := address.ParseAddr(req.PayoutAddress); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payout address"})
		}
	}

	if err := h.users.UpdatePayoutAddress(c.Context(), middleware.GetUserID(c), req.PayoutAddress); err != nil {
		h.log.Error("update payout failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
