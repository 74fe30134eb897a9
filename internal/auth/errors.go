package auth

import "errors"

var (
	// ErrTokenInvalid is returned when a JWT fails signature, expiry, or
	// required-claim checks.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrInvalidCredentials is returned when email/password verification fails.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrNoMembership is returned when a user belongs to no household.
	ErrNoMembership = errors.New("auth: user has no household membership")
)
