package types

import "errors"

var (
	ErrInvalidEmail      = errors.New("email must be a plausible address, 3-254 characters")
	ErrInvalidName       = errors.New("name must be 1-200 characters")
	ErrInvalidPassword   = errors.New("password must be 8-72 characters")
	ErrInvalidResumeName = errors.New("resume name must be 1-200 characters")
	ErrEmptyContent      = errors.New("resume content cannot be empty")
	ErrContentTooLarge   = errors.New("resume content exceeds 1MB limit")
	ErrMissingResumeID   = errors.New("resumeId is required")
)
