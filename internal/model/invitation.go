package model

import (
	"time"

	"github.com/google/uuid"
)

// Code status values stored in invitation_codes.status.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// InvitationCode represents an invitation code row.
type InvitationCode struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	MaxUses     int        `json:"max_uses"`
	UsedCount   int        `json:"used_count"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Status      string     `json:"status"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired reports whether the code's expiry, if set, is before now.
func (c *InvitationCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// RemainingUses returns how many redemptions the code still allows.
func (c *InvitationCode) RemainingUses() int {
	remaining := c.MaxUses - c.UsedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CodeUsage represents one redemption of an invitation code. Usage rows are
// append-only: they are never updated, and never deleted while the parent
// code exists (code deletion is refused while usages remain).
type CodeUsage struct {
	ID        uuid.UUID `json:"id"`
	CodeID    uuid.UUID `json:"code_id"`
	UserID    uuid.UUID `json:"user_id"`
	UsedAt    time.Time `json:"used_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// CodeUsageDetail is a usage row joined with the redeeming user's display name.
type CodeUsageDetail struct {
	CodeUsage
	UserDisplayName string `json:"user_display_name"`
}

// UserCodeUsage is a usage row joined with the redeemed code string, for
// per-user history.
type UserCodeUsage struct {
	CodeUsage
	Code string `json:"code"`
}

// CreateCodeRequest is the DTO for creating an invitation code.
// Code is optional; when omitted an 8-character code is generated.
type CreateCodeRequest struct {
	Code        string     `json:"code" validate:"omitempty,notblank,invitecode,min=4,max=32"`
	MaxUses     *int       `json:"max_uses" validate:"required,gte=1"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Description string     `json:"description" validate:"max=500"`
}

// UpdateCodeRequest is the DTO for partially updating an invitation code.
// Nil fields are left untouched.
type UpdateCodeRequest struct {
	MaxUses   *int       `json:"max_uses" validate:"omitempty,gte=1"`
	ExpiresAt *time.Time `json:"expires_at"`
	Status    *string    `json:"status" validate:"omitempty,oneof=active disabled"`
}

// SetStatusRequest is the DTO for the enable/disable toggle.
type SetStatusRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// RedeemRequest is the DTO for redeeming a code.
type RedeemRequest struct {
	Code string `json:"code" validate:"required,notblank,max=32"`
}

// ValidationResult is the outcome of a read-only code validation.
type ValidationResult struct {
	IsValid       bool                   `json:"is_valid"`
	Message       string                 `json:"message"`
	Code          *InvitationCodeDetails `json:"code,omitempty"`
}

// InvitationCodeDetails is the public view of a valid code, returned to
// callers that need creator identity and remaining quota.
type InvitationCodeDetails struct {
	Code          string     `json:"code"`
	Description   string     `json:"description,omitempty"`
	RemainingUses int        `json:"remaining_uses"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatorName   string     `json:"creator_name"`
}

// ListCodesFilter holds the query parameters of the paginated listing.
type ListCodesFilter struct {
	Status         string
	CreatedBy      *uuid.UUID
	Search         string
	IncludeExpired bool
	Page           int
	PageSize       int
}

// Offset returns the SQL offset for the filter's page.
func (f ListCodesFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// CodeList is one page of codes plus the total match count for pagination.
type CodeList struct {
	Items      []InvitationCode `json:"items"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// UsageList is one page of usage rows for a single code.
type UsageList struct {
	Items      []CodeUsageDetail `json:"items"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// CodeStats holds the aggregate counters of the reporting endpoint.
// Day/week/month windows are computed in UTC; weeks start on Monday.
type CodeStats struct {
	TotalCodes     int `json:"total_codes"`
	ActiveCodes    int `json:"active_codes"`
	DisabledCodes  int `json:"disabled_codes"`
	ExpiredCodes   int `json:"expired_codes"`
	TotalUsages    int `json:"total_usages"`
	UsagesToday    int `json:"usages_today"`
	UsagesThisWeek int `json:"usages_this_week"`
	UsagesThisMonth int `json:"usages_this_month"`
}
