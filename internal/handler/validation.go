package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// formatValidationError converts validator errors into stable client-facing
// messages without leaking struct internals.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := jsonFieldName(fe.Field())

			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be blank"
			case "invitecode":
				return "invalid request: " + field + " must contain only A-Z and 0-9"
			case "min":
				return "invalid request: " + field + " is too short"
			case "max":
				return "invalid request: " + field + " exceeds maximum length"
			case "gte":
				return "invalid request: " + field + " must be at least " + fe.Param()
			case "oneof":
				return "invalid request: " + field + " must be one of: " + fe.Param()
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// jsonFieldName maps exported struct field names to their JSON spelling.
func jsonFieldName(field string) string {
	switch field {
	case "Code":
		return "code"
	case "MaxUses":
		return "max_uses"
	case "ExpiresAt":
		return "expires_at"
	case "Description":
		return "description"
	case "Status":
		return "status"
	case "Enabled":
		return "enabled"
	case "Username":
		return "username"
	case "DisplayName":
		return "display_name"
	case "Password":
		return "password"
	case "InviteCode":
		return "invite_code"
	default:
		return field
	}
}
