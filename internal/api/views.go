package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"resumehub/pkg/interfaces"
	"resumehub/pkg/types"
)

type TrackViewRequest struct {
	ResumeID  string `json:"resumeId"`
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
	Referrer  string `json:"referrer"`
}

type TrackViewResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ViewID    string    `json:"viewId"`
	ResumeID  string    `json:"resumeId"`
	Timestamp time.Time `json:"timestamp"`
}

type ViewListResponse struct {
	Views      []*types.ViewRecord `json:"views"`
	ResumeInfo *types.Resume       `json:"resumeInfo"`
	TotalViews int                 `json:"totalViews"`
}

// POST /api/track-view
//
// Public: fired by the shared resume page on load. The User-Agent header is
// the fallback when the page does not send its own.
func (s *Server) trackView(w http.ResponseWriter, r *http.Request) {
	var req TrackViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ResumeID == "" {
		s.sendError(w, "resumeId is required", http.StatusBadRequest)
		return
	}

	ua := req.UserAgent
	if ua == "" {
		ua = r.Header.Get("User-Agent")
	}
	if ua == "" {
		ua = "unknown"
	}

	view := &types.ViewRecord{
		ID:        uuid.NewString(),
		ResumeID:  req.ResumeID,
		IPAddress: clientIP(r),
		UserAgent: ua,
		URL:       req.URL,
		Referrer:  req.Referrer,
		Device:    deviceType(ua),
		Browser:   browserInfo(ua),
		OS:        osInfo(ua),
		CreatedAt: time.Now(),
	}
	if err := view.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.RecordView(r.Context(), view); err != nil {
		log.Error().Err(err).Msg("failed to record view")
		s.sendError(w, "Failed to track view", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, TrackViewResponse{
		Success:   true,
		Message:   "View tracked successfully",
		ViewID:    view.ID,
		ResumeID:  view.ResumeID,
		Timestamp: view.CreatedAt,
	})
}

// GET /api/views/{id}
func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	resume, ok := s.ownedResume(w, r)
	if !ok {
		return
	}

	views, err := s.store.ListViews(r.Context(), resume.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list views")
		s.sendError(w, "Failed to fetch views", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []*types.ViewRecord{}
	}
	s.sendJSON(w, http.StatusOK, ViewListResponse{
		Views:      views,
		ResumeInfo: resume,
		TotalViews: len(views),
	})
}

// GET /api/views/{id}/summary
func (s *Server) viewSummary(w http.ResponseWriter, r *http.Request) {
	resume, ok := s.ownedResume(w, r)
	if !ok {
		return
	}

	summary, err := s.store.SummarizeViews(r.Context(), resume.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to summarize views")
		s.sendError(w, "Failed to summarize views", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, summary)
}

// ownedResume resolves {id} and enforces that the caller owns the resume or
// is an admin. Writes the error response itself on failure.
func (s *Server) ownedResume(w http.ResponseWriter, r *http.Request) (*types.Resume, bool) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	resume, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrResumeNotFound) {
			s.sendError(w, "Resume not found", http.StatusNotFound)
			return nil, false
		}
		log.Error().Err(err).Msg("failed to get resume")
		s.sendError(w, "Failed to fetch views", http.StatusInternalServerError)
		return nil, false
	}
	if resume.UserID != claims.UserID && claims.Role != types.RoleAdmin {
		s.sendError(w, "Not your resume", http.StatusForbidden)
		return nil, false
	}
	return resume, true
}

// clientIP prefers proxy headers over the socket address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return "unknown"
	}
	return host
}

func deviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		return "tablet"
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "android") || strings.Contains(lower, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func browserInfo(ua string) string {
	switch {
	case strings.Contains(ua, "Edge") || strings.Contains(ua, "Edg/"):
		return "Edge"
	case strings.Contains(ua, "Opera") || strings.Contains(ua, "OPR/"):
		return "Opera"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	default:
		return "Other"
	}
}

func osInfo(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iOS"):
		return "iOS"
	case strings.Contains(ua, "Mac"):
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Other"
	}
}
