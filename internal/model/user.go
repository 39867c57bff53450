package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal account record the invitation subsystem needs:
// creator references, redemption identity and display-name resolution.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the DTO for invitation-gated self-service registration.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,notblank,min=3,max=64"`
	DisplayName string `json:"display_name" validate:"required,notblank,max=128"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	InviteCode  string `json:"invite_code" validate:"required,notblank,max=32"`
}

// LoginRequest is the DTO for credential login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
