package types

import (
	"time"
)

// Roles attached to accounts and carried in JWT claims.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account. PasswordHash never crosses the API boundary.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Resume is an authored resume document. Content is opaque HTML produced by
// the editor; the backend stores and serves it without inspecting it.
type Resume struct {
	ID        string    `json:"_id" db:"id"`
	UniqueID  string    `json:"uniqueId" db:"unique_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Content   string    `json:"resumeData" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ViewRecord is one tracked open of a public resume page. Device, Browser and
// OS are classified server-side from the User-Agent at ingest time.
type ViewRecord struct {
	ID        string    `json:"viewId" db:"id"`
	ResumeID  string    `json:"resumeId" db:"resume_id"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	UserAgent string    `json:"userAgent" db:"user_agent"`
	URL       string    `json:"url,omitempty" db:"url"`
	Referrer  string    `json:"referrer,omitempty" db:"referrer"`
	Device    string    `json:"device" db:"device"`
	Browser   string    `json:"browser" db:"browser"`
	OS        string    `json:"os" db:"os"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ViewSummary aggregates a resume's view records for the analytics dashboard.
type ViewSummary struct {
	ResumeID    string         `json:"resumeId"`
	TotalViews  int            `json:"totalViews"`
	UniqueViews int            `json:"uniqueViews"`
	Devices     map[string]int `json:"devices"`
	Browsers    map[string]int `json:"browsers"`
	OSes        map[string]int `json:"oses"`
}
