package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeep/invite-service/internal/auth"
	"github.com/listkeep/invite-service/internal/middleware"
	"github.com/listkeep/invite-service/internal/model"
	"github.com/listkeep/invite-service/internal/service"
	appvalidator "github.com/listkeep/invite-service/internal/validator"
)

// mockCodeService is a mock implementation of CodeServiceInterface.
type mockCodeService struct {
	createFn     func(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error)
	validateFn   func(ctx context.Context, code string) (*model.ValidationResult, error)
	updateFn     func(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error)
	setStatusFn  func(ctx context.Context, id uuid.UUID, enabled bool) error
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	listFn       func(ctx context.Context, filter model.ListCodesFilter) (*model.CodeList, error)
	statsFn      func(ctx context.Context, createdBy *uuid.UUID) (*model.CodeStats, error)
	codeUsagesFn func(ctx context.Context, codeID uuid.UUID, page, pageSize int) (*model.UsageList, error)
}

func (m *mockCodeService) Create(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error) {
	if m.createFn != nil {
		return m.createFn(ctx, createdBy, req)
	}
	return &model.InvitationCode{}, nil
}

func (m *mockCodeService) Validate(ctx context.Context, code string) (*model.ValidationResult, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, code)
	}
	return &model.ValidationResult{IsValid: true, Message: "code valid"}, nil
}

func (m *mockCodeService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, req)
	}
	return &model.InvitationCode{}, nil
}

func (m *mockCodeService) SetStatus(ctx context.Context, id uuid.UUID, enabled bool) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, enabled)
	}
	return nil
}

func (m *mockCodeService) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCodeService) List(ctx context.Context, filter model.ListCodesFilter) (*model.CodeList, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return &model.CodeList{Items: []model.InvitationCode{}}, nil
}

func (m *mockCodeService) Stats(ctx context.Context, createdBy *uuid.UUID) (*model.CodeStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, createdBy)
	}
	return &model.CodeStats{}, nil
}

func (m *mockCodeService) CodeUsages(ctx context.Context, codeID uuid.UUID, page, pageSize int) (*model.UsageList, error) {
	if m.codeUsagesFn != nil {
		return m.codeUsagesFn(ctx, codeID, page, pageSize)
	}
	return &model.UsageList{Items: []model.CodeUsageDetail{}}, nil
}

// adminClaims mirrors what the auth middleware stores for an admin request.
func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), Username: "root", IsAdmin: true}
}

// withClaims injects claims the way the auth middleware would.
func withClaims(claims *auth.Claims) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.SetClaims(c, claims)
		return c.Next()
	}
}

func setupCodeTestApp(mockSvc *mockCodeService, claims *auth.Claims) *fiber.App {
	app := fiber.New()
	h := NewCodeHandler(mockSvc, appvalidator.New())

	app.Get("/api/codes/validate/:code", h.ValidateCode)
	admin := app.Group("/api/codes", withClaims(claims))
	admin.Post("/", h.CreateCode)
	admin.Get("/", h.ListCodes)
	admin.Get("/stats", h.CodeStats)
	admin.Put("/:id", h.UpdateCode)
	admin.Post("/:id/status", h.SetCodeStatus)
	admin.Delete("/:id", h.DeleteCode)
	admin.Get("/:id/usages", h.CodeUsages)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result["error"]
}

func TestCreateCode_Success(t *testing.T) {
	claims := adminClaims()
	var capturedCreator uuid.UUID
	mockSvc := &mockCodeService{
		createFn: func(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error) {
			capturedCreator = createdBy
			return &model.InvitationCode{ID: uuid.New(), Code: "AB12CD34", MaxUses: *req.MaxUses, Status: model.StatusActive}, nil
		},
	}
	app := setupCodeTestApp(mockSvc, claims)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/", `{"max_uses": 1}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, claims.UserID, capturedCreator, "creator must come from the token, not the body")

	var created model.InvitationCode
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Len(t, created.Code, 8)
	assert.Equal(t, 0, created.UsedCount)
	assert.Equal(t, model.StatusActive, created.Status)
}

func TestCreateCode_MissingMaxUses(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/", `{}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: max_uses is required", decodeError(t, resp))
}

func TestCreateCode_BadExplicitCode(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/", `{"code": "lower case!", "max_uses": 1}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: code must contain only A-Z and 0-9", decodeError(t, resp))
}

func TestCreateCode_Duplicate(t *testing.T) {
	mockSvc := &mockCodeService{
		createFn: func(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error) {
			return nil, service.ErrCodeExists
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/", `{"code": "WELCOME1", "max_uses": 1}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invitation code already exists", decodeError(t, resp))
}

func TestValidateCode_Valid(t *testing.T) {
	mockSvc := &mockCodeService{
		validateFn: func(ctx context.Context, code string) (*model.ValidationResult, error) {
			return &model.ValidationResult{
				IsValid: true,
				Message: "code valid",
				Code:    &model.InvitationCodeDetails{Code: code, RemainingUses: 3, CreatorName: "Ada"},
			}, nil
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/codes/validate/WELCOME1", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result model.ValidationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsValid)
	assert.Equal(t, "Ada", result.Code.CreatorName)
}

func TestValidateCode_Invalid(t *testing.T) {
	mockSvc := &mockCodeService{
		validateFn: func(ctx context.Context, code string) (*model.ValidationResult, error) {
			return &model.ValidationResult{Message: "code expired"}, nil
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/codes/validate/OLD1", nil))
	require.NoError(t, err)

	// Ineligibility is a result, not an HTTP error
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result model.ValidationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.IsValid)
	assert.Equal(t, "code expired", result.Message)
}

func TestListCodes_PassesFilter(t *testing.T) {
	var capturedFilter model.ListCodesFilter
	mockSvc := &mockCodeService{
		listFn: func(ctx context.Context, filter model.ListCodesFilter) (*model.CodeList, error) {
			capturedFilter = filter
			return &model.CodeList{Items: []model.InvitationCode{}, TotalCount: 0, Page: filter.Page, PageSize: filter.PageSize}, nil
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/codes/?status=active&search=WEL&include_expired=false&page=3&page_size=50", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusActive, capturedFilter.Status)
	assert.Equal(t, "WEL", capturedFilter.Search)
	assert.False(t, capturedFilter.IncludeExpired)
	assert.Equal(t, 3, capturedFilter.Page)
	assert.Equal(t, 50, capturedFilter.PageSize)
}

func TestListCodes_BadStatus(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/codes/?status=archived", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCodeStats_ScopedToCreator(t *testing.T) {
	creator := uuid.New()
	var capturedScope *uuid.UUID
	mockSvc := &mockCodeService{
		statsFn: func(ctx context.Context, createdBy *uuid.UUID) (*model.CodeStats, error) {
			capturedScope = createdBy
			return &model.CodeStats{TotalCodes: 2}, nil
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/codes/stats?created_by="+creator.String(), nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, capturedScope)
	assert.Equal(t, creator, *capturedScope)
}

func TestUpdateCode_NotFound(t *testing.T) {
	mockSvc := &mockCodeService{
		updateFn: func(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error) {
			return nil, service.ErrCodeNotFound
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/codes/"+uuid.NewString(), `{"max_uses": 5}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "invitation code not found", decodeError(t, resp))
}

func TestUpdateCode_BadID(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/codes/not-a-uuid", `{"max_uses": 5}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSetCodeStatus_Disable(t *testing.T) {
	var capturedEnabled bool
	mockSvc := &mockCodeService{
		setStatusFn: func(ctx context.Context, id uuid.UUID, enabled bool) error {
			capturedEnabled = enabled
			return nil
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/"+uuid.NewString()+"/status", `{"enabled": false}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, capturedEnabled)
}

func TestSetCodeStatus_MissingEnabled(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/codes/"+uuid.NewString()+"/status", `{}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request: enabled is required", decodeError(t, resp))
}

func TestDeleteCode_WithUsages(t *testing.T) {
	mockSvc := &mockCodeService{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			return service.ErrCodeInUse
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/codes/"+uuid.NewString(), nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invitation code has recorded usages", decodeError(t, resp))
}

func TestDeleteCode_Success(t *testing.T) {
	app := setupCodeTestApp(&mockCodeService{}, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/codes/"+uuid.NewString(), nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCodeUsages_NotFound(t *testing.T) {
	mockSvc := &mockCodeService{
		codeUsagesFn: func(ctx context.Context, codeID uuid.UUID, page, pageSize int) (*model.UsageList, error) {
			return nil, service.ErrCodeNotFound
		},
	}
	app := setupCodeTestApp(mockSvc, adminClaims())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/codes/"+uuid.NewString()+"/usages", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
