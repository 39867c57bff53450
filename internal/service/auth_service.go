package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/listkeep/invite-service/internal/model"
)

// UserRepositoryInterface defines the interface for user data access.
type UserRepositoryInterface interface {
	Insert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Redeemer is the slice of the invitation service registration consumes.
type Redeemer interface {
	Validate(ctx context.Context, code string) (*model.ValidationResult, error)
	Redeem(ctx context.Context, code string, userID uuid.UUID, ipAddress, userAgent string) error
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

// AuthService provides invitation-gated registration and credential login.
type AuthService struct {
	users   UserRepositoryInterface
	invites Redeemer
	tokens  TokenIssuer
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepositoryInterface, invites Redeemer, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, invites: invites, tokens: tokens}
}

// Register creates a user account gated by an invitation code, then issues a
// token. The invitation code is validated up front so obviously bad codes
// fail before any write. The user row, once committed, is kept; the code
// redemption that follows is best-effort bookkeeping whose failure is logged
// but does not undo the account. A concurrent redemption can exhaust the code
// between the two steps; that is the accepted cost of keeping registration
// available.
// Returns:
//   - ErrCodeNotFound / ErrCodeDisabled / ErrCodeExpired / ErrCodeExhausted
//     when the invitation code fails up-front validation
//   - ErrUserExists when the username is taken
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest, ipAddress, userAgent string) (*model.AuthResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	result, err := s.invites.Validate(ctx, req.InviteCode)
	if err != nil {
		return nil, fmt.Errorf("validate invite code: %w", err)
	}
	if !result.IsValid {
		return nil, validationError(result.Message)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	// Phase two: record the redemption. The account stands even if this
	// fails; the error is surfaced to the operational log for follow-up.
	if err := s.invites.Redeem(ctx, req.InviteCode, user.ID, ipAddress, userAgent); err != nil {
		log.Error().
			Err(err).
			Str("username", user.Username).
			Str("user_id", user.ID.String()).
			Str("invite_code", req.InviteCode).
			Msg("invite code redemption failed after user creation")
	}

	return s.issueFor(user)
}

// Login verifies credentials and issues a token.
// Returns ErrInvalidCredentials for an unknown username or wrong password.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueFor(user)
}

func (s *AuthService) issueFor(user *model.User) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	public := *user
	public.PasswordHash = ""
	return &model.AuthResponse{Token: token, User: public}, nil
}

// validationError maps a validation result message back to its sentinel so
// registration surfaces the same error taxonomy as direct redemption.
func validationError(message string) error {
	switch message {
	case "code disabled":
		return ErrCodeDisabled
	case "code expired":
		return ErrCodeExpired
	case "usage limit reached":
		return ErrCodeExhausted
	default:
		return ErrCodeNotFound
	}
}
