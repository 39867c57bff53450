package service

import "errors"

var (
	// ErrCodeExists is returned when attempting to create a code string that already exists
	ErrCodeExists = errors.New("invitation code already exists")

	// ErrCodeNotFound is returned when an invitation code cannot be found
	ErrCodeNotFound = errors.New("invitation code not found")

	// ErrCodeDisabled is returned when a code has been administratively disabled
	ErrCodeDisabled = errors.New("invitation code disabled")

	// ErrCodeExpired is returned when a code's expiry timestamp has passed
	ErrCodeExpired = errors.New("invitation code expired")

	// ErrCodeExhausted is returned when a code has reached its usage limit
	ErrCodeExhausted = errors.New("invitation code usage limit reached")

	// ErrAlreadyUsed is returned when a user attempts to redeem a code they already redeemed
	ErrAlreadyUsed = errors.New("invitation code already used by user")

	// ErrCodeInUse is returned when deleting a code that has recorded usages
	ErrCodeInUse = errors.New("invitation code has recorded usages")

	// ErrCreatorNotFound is returned when a code's creator reference does not resolve
	ErrCreatorNotFound = errors.New("creator not found")

	// ErrUserNotFound is returned when a user reference does not resolve
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when registering a username that is taken
	ErrUserExists = errors.New("username already taken")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)
