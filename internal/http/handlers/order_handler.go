package handlers

import (
	"strconv"

	"github.com/gigchain/backend/internal/http/dto"
	"github.com/gigchain/backend/internal/middleware"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/services"
	"github.com/gigchain/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService      *services.OrderService
	settlementService *services.SettlementService
	disputeService    *services.DisputeService
	gigService        *services.GigService
	escrowAddress     string
	log               *zap.Logger
}

func NewOrderHandler(
	orderService *services.OrderService,
	settlementService *services.SettlementService,
	disputeService *services.DisputeService,
	gigService *services.GigService,
	escrowAddress string,
	log *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		orderService:      orderService,
		settlementService: settlementService,
		disputeService:    disputeService,
		gigService:        gigService,
		escrowAddress:     escrowAddress,
		log:               log,
	}
}

// DepositInfo tells the client where to send the deposit before creating
// the order.
func (h *OrderHandler) DepositInfo(c *fiber.Ctx) error {
	gigID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gig id"})
	}
	pkgIndex, _ := strconv.Atoi(c.Query("package", "0"))

	gig, err := h.gigService.GetGig(c.Context(), gigID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	pkg := gig.Package(pkgIndex)
	if pkg == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid package index"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DepositInfoResponse{
		EscrowAddress: h.escrowAddress,
		AmountTON:     pkg.PriceTON,
		ToleranceTON:  ton.FormatTON(ton.DepositToleranceNano),
	}})
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	gigID, err := uuid.Parse(req.GigID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gig_id"})
	}

	buyerID := middleware.GetUserID(c)
	order, err := h.orderService.CreateOrder(c.Context(), buyerID, gigID, req.PackageIndex, req.DepositTxHash)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.orderService.GetOrder(c.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.OrderFilter{Limit: 20}

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
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	switch c.Query("role") {
	case "seller":
		filter.SellerID = &userID
	default:
		filter.BuyerID = &userID
	}

	orders, err := h.orderService.ListOrders(c.Context(), filter)
	if err != nil {
		h.log.Error("list orders failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: orders})
}

func (h *OrderHandler) GetLedger(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	entries, err := h.orderService.OrderLedger(c.Context(), middleware.GetUserID(c), middleware.IsAdmin(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

func (h *OrderHandler) SubmitProof(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.SubmitProofRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	order, err := h.orderService.SubmitProof(c.Context(), middleware.GetUserID(c), orderID, req.Description, req.Files)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.orderService.MarkDelivered(c.Context(), middleware.GetUserID(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// Approve releases escrow to the seller. Safe to call twice; the second
// call is a no-op that returns the settled order.
func (h *OrderHandler) Approve(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	order, err := h.settlementService.ApproveDelivery(c.Context(), middleware.GetUserID(c), orderID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

func (h *OrderHandler) Dispute(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	order, err := h.disputeService.FileDispute(c.Context(), middleware.GetUserID(c), orderID, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}

// ResolveDispute is admin-only (enforced by the router).
func (h *OrderHandler) ResolveDispute(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid order id"})
	}

	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	order, err := h.disputeService.ResolveDispute(c.Context(), orderID, req.RefundPct, req.Reason)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: order})
}
