package interfaces

import "errors"

// Common store errors surfaced across components.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrResumeNotFound = errors.New("resume not found")
	ErrDuplicateEmail = errors.New("email already registered")
)
