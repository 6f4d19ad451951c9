package auth

import "errors"

var (
	// ErrUnauthorized is returned when no valid credential is presented.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)
