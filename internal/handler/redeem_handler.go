package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/listkeep/invite-service/internal/middleware"
	"github.com/listkeep/invite-service/internal/model"
	"github.com/listkeep/invite-service/internal/service"
)

// RedeemServiceInterface defines the interface for redemption business logic.
type RedeemServiceInterface interface {
	Redeem(ctx context.Context, code string, userID uuid.UUID, ipAddress, userAgent string) error
	UserUsages(ctx context.Context, userID uuid.UUID) ([]model.UserCodeUsage, error)
}

// RedeemHandler handles HTTP requests for code redemption and per-user history.
type RedeemHandler struct {
	service   RedeemServiceInterface
	validator *validator.Validate
}

// NewRedeemHandler creates a new RedeemHandler with the given service and validator.
func NewRedeemHandler(svc RedeemServiceInterface, v *validator.Validate) *RedeemHandler {
	return &RedeemHandler{service: svc, validator: v}
}

// RedeemCode handles POST /api/codes/redeem for the authenticated user.
func (h *RedeemHandler) RedeemCode(c *fiber.Ctx) error {
	var req model.RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	claims := middleware.ClaimsFromCtx(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
	}

	err := h.service.Redeem(c.Context(), req.Code, claims.UserID, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invitation code not found"})
		case errors.Is(err, service.ErrAlreadyUsed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invitation code already used by user"})
		case errors.Is(err, service.ErrCodeDisabled):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invitation code disabled"})
		case errors.Is(err, service.ErrCodeExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invitation code expired"})
		case errors.Is(err, service.ErrCodeExhausted):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invitation code usage limit reached"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("user_id", claims.UserID.String()).
			Str("code", req.Code).
			Msg("failed to redeem invitation code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("user_id", claims.UserID.String()).
		Str("code", req.Code).
		Msg("invitation code redeemed")

	return c.JSON(fiber.Map{"success": true})
}

// MyUsages handles GET /api/users/me/usages for the authenticated user.
func (h *RedeemHandler) MyUsages(c *fiber.Ctx) error {
	claims := middleware.ClaimsFromCtx(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
	}

	usages, err := h.service.UserUsages(c.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("failed to list user usages")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"items": usages})
}
