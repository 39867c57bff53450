package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/listkeep/invite-service/internal/codegen"
)

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// Register custom "notblank" validator - rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// Register custom "invitecode" validator - restricts explicit codes to the
	// same [A-Z0-9] alphabet generated codes use
	_ = v.RegisterValidation("invitecode", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return codegen.Valid(str)
	})

	return v
}
