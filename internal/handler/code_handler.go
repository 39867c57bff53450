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

// CodeServiceInterface defines the interface for invitation code business logic.
type CodeServiceInterface interface {
	Create(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error)
	Validate(ctx context.Context, code string) (*model.ValidationResult, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error)
	SetStatus(ctx context.Context, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter model.ListCodesFilter) (*model.CodeList, error)
	Stats(ctx context.Context, createdBy *uuid.UUID) (*model.CodeStats, error)
	CodeUsages(ctx context.Context, codeID uuid.UUID, page, pageSize int) (*model.UsageList, error)
}

// CodeHandler handles HTTP requests for invitation code administration.
type CodeHandler struct {
	service   CodeServiceInterface
	validator *validator.Validate
}

// NewCodeHandler creates a new CodeHandler with the given service and validator.
func NewCodeHandler(svc CodeServiceInterface, v *validator.Validate) *CodeHandler {
	return &CodeHandler{service: svc, validator: v}
}

// CreateCode handles POST /api/codes.
func (h *CodeHandler) CreateCode(c *fiber.Ctx) error {
	var req model.CreateCodeRequest
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

	code, err := h.service.Create(c.Context(), claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invitation code already exists"})
		case errors.Is(err, service.ErrCreatorNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "creator not found"})
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("created_by", claims.UserID.String()).Msg("failed to create invitation code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(code)
}

// ValidateCode handles GET /api/codes/validate/:code. Ineligible codes are a
// 200 with is_valid=false; only infrastructure failures are 5xx.
func (h *CodeHandler) ValidateCode(c *fiber.Ctx) error {
	codeStr := c.Params("code")
	if codeStr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	result, err := h.service.Validate(c.Context(), codeStr)
	if err != nil {
		log.Error().Err(err).Str("code", codeStr).Msg("failed to validate invitation code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(result)
}

// ListCodes handles GET /api/codes with filter query parameters.
func (h *CodeHandler) ListCodes(c *fiber.Ctx) error {
	filter := model.ListCodesFilter{
		Status:         c.Query("status"),
		Search:         c.Query("search"),
		IncludeExpired: c.QueryBool("include_expired", true),
		Page:           c.QueryInt("page", 1),
		PageSize:       c.QueryInt("page_size", service.DefaultPageSize),
	}
	if filter.Status != "" && filter.Status != model.StatusActive && filter.Status != model.StatusDisabled {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: status must be one of: active disabled"})
	}
	if createdBy := c.Query("created_by"); createdBy != "" {
		id, err := uuid.Parse(createdBy)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: created_by must be a uuid"})
		}
		filter.CreatedBy = &id
	}

	list, err := h.service.List(c.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list invitation codes")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(list)
}

// CodeStats handles GET /api/codes/stats.
func (h *CodeHandler) CodeStats(c *fiber.Ctx) error {
	var createdBy *uuid.UUID
	if scope := c.Query("created_by"); scope != "" {
		id, err := uuid.Parse(scope)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: created_by must be a uuid"})
		}
		createdBy = &id
	}

	stats, err := h.service.Stats(c.Context(), createdBy)
	if err != nil {
		log.Error().Err(err).Msg("failed to compute invitation code stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(stats)
}

// UpdateCode handles PUT /api/codes/:id.
func (h *CodeHandler) UpdateCode(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	var req model.UpdateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	code, err := h.service.Update(c.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invitation code not found"})
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: no fields to update"})
		}
		log.Error().Err(err).Str("code_id", id.String()).Msg("failed to update invitation code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(code)
}

// SetCodeStatus handles POST /api/codes/:id/status.
func (h *CodeHandler) SetCodeStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	var req model.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	if err := h.service.SetStatus(c.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invitation code not found"})
		}
		log.Error().Err(err).Str("code_id", id.String()).Msg("failed to set invitation code status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteCode handles DELETE /api/codes/:id.
func (h *CodeHandler) DeleteCode(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrCodeNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invitation code not found"})
		case errors.Is(err, service.ErrCodeInUse):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invitation code has recorded usages"})
		}
		log.Error().Err(err).Str("code_id", id.String()).Msg("failed to delete invitation code")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// CodeUsages handles GET /api/codes/:id/usages.
func (h *CodeHandler) CodeUsages(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be a uuid"})
	}

	usages, err := h.service.CodeUsages(c.Context(), id,
		c.QueryInt("page", 1), c.QueryInt("page_size", service.DefaultPageSize))
	if err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "invitation code not found"})
		}
		log.Error().Err(err).Str("code_id", id.String()).Msg("failed to list code usages")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(usages)
}
