package auth

import "errors"

var (
	// ErrInvalidToken indicates a token that failed signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongPassword indicates a password that does not match the stored
	// hash.
	ErrWrongPassword = errors.New("wrong password")
)
