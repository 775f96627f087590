package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant roles.
const (
	RoleVisitor   = "visitor"
	RoleRecruiter = "recruiter"
)

// Identity is a stable logical participant, distinct from any live
// connection. A visitor's ID is persisted client-side and reattaches to the
// same conversation across reconnects.
type Identity struct {
	ID    string
	Role  string
	Name  string
	Email string
}

// identityRegistry produces and validates participant identities. Reads
// configuration only; conversation creation happens in the relay loop.
type identityRegistry struct {
	recruiterEmail string
	recruiterName  string
}

// registerVisitor reuses a supplied non-empty ID, otherwise synthesizes a new
// one. Never fails.
func (r *identityRegistry) registerVisitor(providedID, name, email string) Identity {
	id := strings.TrimSpace(providedID)
	if id == "" {
		id = newVisitorID()
	}
	if strings.TrimSpace(name) == "" {
		name = "Anonymous User"
	}
	return Identity{ID: id, Role: RoleVisitor, Name: name, Email: email}
}

// authenticateRecruiter grants the recruiter role only for the configured
// allow-listed email. The comparison is case-insensitive: email addresses are
// case-insensitive in practice and the allow list is operator-supplied.
func (r *identityRegistry) authenticateRecruiter(email, name string) (Identity, error) {
	if !strings.EqualFold(strings.TrimSpace(email), r.recruiterEmail) {
		return Identity{}, ErrInvalidCredential
	}
	if strings.TrimSpace(name) == "" {
		name = r.recruiterName
	}
	return Identity{ID: recruiterIdentityID, Role: RoleRecruiter, Name: name, Email: r.recruiterEmail}, nil
}

// recruiterIdentityID is the fixed sentinel for the single recruiter.
const recruiterIdentityID = "recruiter"

// newVisitorID synthesizes an identifier unique within the process. The
// shape matches what the web client generates for localStorage.
func newVisitorID() string {
	return fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
