package handlers

import (
	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps an error kind to an HTTP status. Internal details never
// reach the client; everything else passes its message through.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind := apperrors.KindOf(err)

	var status int
	switch kind {
	case apperrors.KindAuthentication:
		status = fiber.StatusUnauthorized
	case apperrors.KindAuthorization:
		status = fiber.StatusForbidden
	case apperrors.KindNotFound:
		status = fiber.StatusNotFound
	case apperrors.KindConflict:
		status = fiber.StatusConflict
	case apperrors.KindState, apperrors.KindVerification:
		status = fiber.StatusBadRequest
	case apperrors.KindNetwork, apperrors.KindExecution:
		status = fiber.StatusBadGateway
	case apperrors.KindInsufficientFunds:
		status = fiber.StatusServiceUnavailable
	default:
		log.Error("internal error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}
