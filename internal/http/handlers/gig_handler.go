package handlers

import (
	"strconv"

	"github.com/gigchain/backend/internal/http/dto"
	"github.com/gigchain/backend/internal/middleware"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GigHandler struct {
	gigService *services.GigService
	log        *zap.Logger
}

func NewGigHandler(gigService *services.GigService, log *zap.Logger) *GigHandler {
	return &GigHandler{gigService: gigService, log: log}
}

func gigInput(req dto.GigRequest) services.GigInput {
	in := services.GigInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	}
	for _, p := range req.Packages {
		in.Packages = append(in.Packages, models.GigPackage{
			Title:        p.Title,
			PriceTON:     p.PriceTON,
			DeliveryDays: p.DeliveryDays,
		})
	}
	return in
}

func (h *GigHandler) CreateGig(c *fiber.Ctx) error {
	var req dto.GigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	gig, err := h.gigService.CreateGig(c.Context(), middleware.GetUserID(c), gigInput(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: gig})
}

func (h *GigHandler) GetGig(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gig id"})
	}

	gig, err := h.gigService.GetGig(c.Context(), gigID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gig})
}

func (h *GigHandler) ListGigs(c *fiber.Ctx) error {
	filter := repositories.GigFilter{Limit: 20, ActiveOnly: true}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}
	if v := c.Query("seller_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.SellerID = &id
		}
	}

	gigs, err := h.gigService.ListGigs(c.Context(), filter)
	if err != nil {
		h.log.Error("list gigs failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gigs})
}

// MyGigs includes inactive listings, unlike the public list.
func (h *GigHandler) MyGigs(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	gigs, err := h.gigService.ListGigs(c.Context(), repositories.GigFilter{SellerID: &userID, Limit: 100})
	if err != nil {
		h.log.Error("list own gigs failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gigs})
}

func (h *GigHandler) UpdateGig(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gig id"})
	}

	var req dto.GigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	gig, err := h.gigService.UpdateGig(c.Context(), middleware.GetUserID(c), gigID, gigInput(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gig})
}

func (h *GigHandler) SetActive(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gig id"})
	}

	var req dto.SetGigActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := h.gigService.SetGigActive(c.Context(), middleware.GetUserID(c), gigID, req.IsActive); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
