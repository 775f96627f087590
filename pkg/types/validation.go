package types

import (
	"regexp"
	"strings"
)

// Compiled once at package initialization; validation runs on every signup
// and resume write.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail checks the address shape without attempting full RFC 5322
// parsing. Deliverability is the mail system's problem, not ours.
func IsValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// Validate ensures an account meets signup requirements. The password is
// checked separately before hashing.
func (u *User) Validate() error {
	if l := len(strings.TrimSpace(u.Name)); l < 1 || l > 200 {
		return ErrInvalidName
	}
	if !IsValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// IsValidPassword bounds raw password length. The upper bound is bcrypt's
// 72-byte input limit.
func IsValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// Validate ensures a resume is storable.
func (r *Resume) Validate() error {
	if l := len(strings.TrimSpace(r.Name)); l < 1 || l > 200 {
		return ErrInvalidResumeName
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > 1<<20 {
		return ErrContentTooLarge
	}
	return nil
}

// Validate ensures a tracking record references a resume. Everything else is
// best-effort client metadata and may be empty.
func (v *ViewRecord) Validate() error {
	if strings.TrimSpace(v.ResumeID) == "" {
		return ErrMissingResumeID
	}
	return nil
}
