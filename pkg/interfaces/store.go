package interfaces

import (
	"context"

	"resumehub/pkg/types"
)

// UserStore handles account persistence for the auth endpoints.
type UserStore interface {
	// CreateUser persists a new account. Fails with ErrDuplicateEmail when
	// the address is already registered.
	CreateUser(ctx context.Context, user *types.User) error

	// GetUserByEmail retrieves an account for credential checks.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// GetUser retrieves an account by ID for token refresh.
	GetUser(ctx context.Context, id string) (*types.User, error)
}

// ResumeStore handles resume document persistence.
type ResumeStore interface {
	// CreateResume persists a new resume and its share identifier.
	CreateResume(ctx context.Context, resume *types.Resume) error

	// GetResume resolves either the internal ID or the public uniqueId,
	// matching the original share-link behavior.
	GetResume(ctx context.Context, idOrUniqueID string) (*types.Resume, error)

	// ListResumesByUser returns all resumes owned by an account, most
	// recently updated first.
	ListResumesByUser(ctx context.Context, userID string) ([]*types.Resume, error)

	// UpdateResume replaces name and content of an existing resume.
	UpdateResume(ctx context.Context, resume *types.Resume) error

	// DeleteResume removes a resume and its tracking data.
	DeleteResume(ctx context.Context, id string) error
}

// ViewStore handles page-view tracking records.
type ViewStore interface {
	// RecordView persists one tracked open of a public resume page.
	RecordView(ctx context.Context, view *types.ViewRecord) error

	// ListViews returns all views for a resume, most recent first.
	ListViews(ctx context.Context, resumeID string) ([]*types.ViewRecord, error)

	// SummarizeViews aggregates totals and device/browser/OS breakdowns.
	SummarizeViews(ctx context.Context, resumeID string) (*types.ViewSummary, error)
}
