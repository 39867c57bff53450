package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listkeep/invite-service/internal/codegen"
	"github.com/listkeep/invite-service/internal/model"
	"github.com/listkeep/invite-service/pkg/database"
)

// Default pagination bounds for listing endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// createAttempts bounds the generate-insert retry loop on code collisions.
const createAttempts = 5

// CodeRepositoryInterface defines the interface for invitation code data access.
type CodeRepositoryInterface interface {
	Insert(ctx context.Context, code *model.InvitationCode) error
	GetByCode(ctx context.Context, code string) (*model.InvitationCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.InvitationCode, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.InvitationCode, error)
	IncrementUsage(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter model.ListCodesFilter) ([]model.InvitationCode, int, error)
	CountByStatus(ctx context.Context, createdBy *uuid.UUID) (total, active, disabled, expired int, err error)
}

// UsageRepositoryInterface defines the interface for usage row data access.
type UsageRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, usage *model.CodeUsage) error
	CountByCode(ctx context.Context, codeID uuid.UUID) (int, error)
	ListByCode(ctx context.Context, codeID uuid.UUID, page, pageSize int) ([]model.CodeUsageDetail, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.UserCodeUsage, error)
	CountWindows(ctx context.Context, createdBy *uuid.UUID) (total, today, week, month int, err error)
}

// UserLookup is the slice of user data access the invitation service consumes.
type UserLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// InvitationService provides the invitation code business logic: lifecycle,
// validation, redemption and reporting.
type InvitationService struct {
	pool       database.TxBeginner
	codeRepo   CodeRepositoryInterface
	usageRepo  UsageRepositoryInterface
	users      UserLookup
	codeLength int

	// generate is swapped out in tests
	generate func(n int) (string, error)
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(pool *pgxpool.Pool, codeRepo CodeRepositoryInterface, usageRepo UsageRepositoryInterface, users UserLookup, codeLength int) *InvitationService {
	return newInvitationService(pool, codeRepo, usageRepo, users, codeLength)
}

// NewInvitationServiceWithTxBeginner creates an InvitationService with a custom
// TxBeginner. Primarily used for testing.
func NewInvitationServiceWithTxBeginner(pool database.TxBeginner, codeRepo CodeRepositoryInterface, usageRepo UsageRepositoryInterface, users UserLookup, codeLength int) *InvitationService {
	return newInvitationService(pool, codeRepo, usageRepo, users, codeLength)
}

func newInvitationService(pool database.TxBeginner, codeRepo CodeRepositoryInterface, usageRepo UsageRepositoryInterface, users UserLookup, codeLength int) *InvitationService {
	if codeLength <= 0 {
		codeLength = codegen.DefaultLength
	}
	return &InvitationService{
		pool:       pool,
		codeRepo:   codeRepo,
		usageRepo:  usageRepo,
		users:      users,
		codeLength: codeLength,
		generate:   codegen.Generate,
	}
}

// Create creates a new invitation code for the given creator. When req.Code is
// empty a random code is generated, retrying on the (unlikely) collision.
// Returns ErrCodeExists for an explicit duplicate code and ErrCreatorNotFound
// when the creator reference does not resolve.
func (s *InvitationService) Create(ctx context.Context, createdBy uuid.UUID, req *model.CreateCodeRequest) (*model.InvitationCode, error) {
	if req == nil || req.MaxUses == nil {
		return nil, ErrInvalidRequest
	}

	exists, err := s.users.Exists(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("check creator: %w", err)
	}
	if !exists {
		return nil, ErrCreatorNotFound
	}

	code := &model.InvitationCode{
		Code:        req.Code,
		Description: req.Description,
		MaxUses:     *req.MaxUses,
		ExpiresAt:   req.ExpiresAt,
		Status:      model.StatusActive,
		CreatedBy:   createdBy,
	}

	if code.Code != "" {
		code.ID = uuid.New()
		return code, s.codeRepo.Insert(ctx, code)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		generated, err := s.generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		code.ID = uuid.New()
		code.Code = generated

		err = s.codeRepo.Insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeExists) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("generate unique code: gave up after %d attempts", createAttempts)
}

// Validate checks a code's eligibility without mutating state. Ineligibility
// is reported in the result, not as an error; the error return is reserved
// for storage failures. Checks short-circuit in a fixed order: existence,
// status, expiry, quota.
func (s *InvitationService) Validate(ctx context.Context, codeStr string) (*model.ValidationResult, error) {
	code, err := s.codeRepo.GetByCode(ctx, codeStr)
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	if code == nil {
		return &model.ValidationResult{Message: "code not found"}, nil
	}
	if code.Status != model.StatusActive {
		return &model.ValidationResult{Message: "code disabled"}, nil
	}
	if code.Expired(time.Now()) {
		return &model.ValidationResult{Message: "code expired"}, nil
	}
	if code.UsedCount >= code.MaxUses {
		return &model.ValidationResult{Message: "usage limit reached"}, nil
	}

	details := &model.InvitationCodeDetails{
		Code:          code.Code,
		Description:   code.Description,
		RemainingUses: code.RemainingUses(),
		ExpiresAt:     code.ExpiresAt,
	}
	if creator, err := s.users.GetByID(ctx, code.CreatedBy); err == nil && creator != nil {
		details.CreatorName = creator.DisplayName
	}

	return &model.ValidationResult{IsValid: true, Message: "code valid", Code: details}, nil
}

// Redeem atomically consumes one use of a code for a user. The code row is
// locked for the duration of the transaction, the usage insert is guarded by
// the (code_id, user_id) unique constraint and the counter increment refuses
// to pass max_uses, so no interleaving of concurrent redemptions can oversell
// a code or record the same user twice.
// Returns:
//   - ErrCodeNotFound if the code doesn't exist
//   - ErrCodeDisabled / ErrCodeExpired / ErrCodeExhausted per the gate
//   - ErrAlreadyUsed if the user has already redeemed this code
func (s *InvitationService) Redeem(ctx context.Context, codeStr string, userID uuid.UUID, ipAddress, userAgent string) error {
	return database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		code, err := s.codeRepo.GetForUpdate(ctx, tx, codeStr)
		if err != nil {
			return err
		}

		switch {
		case code.Status != model.StatusActive:
			return ErrCodeDisabled
		case code.Expired(time.Now()):
			return ErrCodeExpired
		case code.UsedCount >= code.MaxUses:
			return ErrCodeExhausted
		}

		usage := &model.CodeUsage{
			ID:        uuid.New(),
			CodeID:    code.ID,
			UserID:    userID,
			IPAddress: ipAddress,
			UserAgent: userAgent,
		}
		if err := s.usageRepo.Insert(ctx, tx, usage); err != nil {
			return err
		}

		return s.codeRepo.IncrementUsage(ctx, tx, code.ID)
	})
}

// Update applies a partial update to a code. Returns ErrCodeNotFound if the
// id does not resolve and ErrInvalidRequest when no field is supplied.
func (s *InvitationService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateCodeRequest) (*model.InvitationCode, error) {
	if req == nil || (req.MaxUses == nil && req.ExpiresAt == nil && req.Status == nil) {
		return nil, ErrInvalidRequest
	}
	return s.codeRepo.Update(ctx, id, req)
}

// SetStatus toggles a code between active and disabled.
func (s *InvitationService) SetStatus(ctx context.Context, id uuid.UUID, enabled bool) error {
	status := model.StatusDisabled
	if enabled {
		status = model.StatusActive
	}
	return s.codeRepo.SetStatus(ctx, id, status)
}

// Delete removes a code that has never been redeemed. Codes with usage rows
// are audit history and cannot be deleted; ErrCodeInUse is returned instead.
func (s *InvitationService) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.usageRepo.CountByCode(ctx, id)
	if err != nil {
		return fmt.Errorf("count usages: %w", err)
	}
	if count > 0 {
		return ErrCodeInUse
	}
	// The FK from usage rows backstops this check against a concurrent redemption.
	return s.codeRepo.Delete(ctx, id)
}

// List returns one page of codes matching the filter, newest first.
// Page and page size are normalized to sane bounds.
func (s *InvitationService) List(ctx context.Context, filter model.ListCodesFilter) (*model.CodeList, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	items, total, err := s.codeRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return &model.CodeList{
		Items:      items,
		TotalCount: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

// Stats returns aggregate code and usage counters, optionally scoped to codes
// created by one user.
func (s *InvitationService) Stats(ctx context.Context, createdBy *uuid.UUID) (*model.CodeStats, error) {
	total, active, disabled, expired, err := s.codeRepo.CountByStatus(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("code counters: %w", err)
	}
	usages, today, week, month, err := s.usageRepo.CountWindows(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("usage counters: %w", err)
	}
	return &model.CodeStats{
		TotalCodes:      total,
		ActiveCodes:     active,
		DisabledCodes:   disabled,
		ExpiredCodes:    expired,
		TotalUsages:     usages,
		UsagesToday:     today,
		UsagesThisWeek:  week,
		UsagesThisMonth: month,
	}, nil
}

// CodeUsages returns one page of a code's usage history.
// Returns ErrCodeNotFound if the id does not resolve.
func (s *InvitationService) CodeUsages(ctx context.Context, codeID uuid.UUID, page, pageSize int) (*model.UsageList, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	code, err := s.codeRepo.GetByID(ctx, codeID)
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	if code == nil {
		return nil, ErrCodeNotFound
	}

	total, err := s.usageRepo.CountByCode(ctx, codeID)
	if err != nil {
		return nil, fmt.Errorf("count usages: %w", err)
	}
	items, err := s.usageRepo.ListByCode(ctx, codeID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list usages: %w", err)
	}
	return &model.UsageList{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// UserUsages returns every redemption a user has made.
func (s *InvitationService) UserUsages(ctx context.Context, userID uuid.UUID) ([]model.UserCodeUsage, error) {
	return s.usageRepo.ListByUser(ctx, userID)
}
