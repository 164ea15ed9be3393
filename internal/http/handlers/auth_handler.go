package handlers

import (
	"time"

	"github.com/gigchain/backend/internal/http/dto"
	"github.com/gigchain/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Challenge hands the client a nonce to sign with its wallet.
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	payload, err := h.authService.Challenge(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ChallengeResponse{
		Payload:   payload.Payload,
		ExpiresIn: int64(time.Until(payload.ExpiresAt).Seconds()),
	}})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	token, user, err := h.authService.Login(c.Context(), services.WalletCredentials{
		Address:   req.Address,
		PublicKey: req.PublicKey,
		Proof:     req.Proof,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.AuthResponse{Token: token, User: user}})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	token, user, err := h.authService.Signup(c.Context(), services.WalletCredentials{
		Address:   req.Address,
		PublicKey: req.PublicKey,
		Proof:     req.Proof,
	}, req.DisplayName, req.Role)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.AuthResponse{Token: token, User: user}})
}

// Status tells a connecting wallet whether it should log in or sign up.
func (h *AuthHandler) Status(c *fiber.Ctx) error {
	wallet := c.Query("address")
	if wallet == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address query param is required"})
	}

	registered, err := h.authService.IsRegistered(c.Context(), wallet)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RegistrationStatusResponse{Registered: registered}})
}
