package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"resumehub/pkg/interfaces"
	"resumehub/pkg/types"
)

type SaveResumeRequest struct {
	Name    string `json:"name"`
	Content string `json:"resumeData"`
}

type ResumeListResponse struct {
	Resumes []*types.Resume `json:"resumes"`
}

// POST /api/resumes
func (s *Server) createResume(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req SaveResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	now := time.Now()
	resume := &types.Resume{
		ID:        uuid.NewString(),
		UniqueID:  newShareID(),
		UserID:    claims.UserID,
		Name:      strings.TrimSpace(req.Name),
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := resume.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateResume(r.Context(), resume); err != nil {
		log.Error().Err(err).Msg("failed to create resume")
		s.sendError(w, "Failed to save resume", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusCreated, resume)
}

// GET /api/resumes
func (s *Server) listResumes(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	resumes, err := s.store.ListResumesByUser(r.Context(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list resumes")
		s.sendError(w, "Failed to list resumes", http.StatusInternalServerError)
		return
	}
	if resumes == nil {
		resumes = []*types.Resume{}
	}
	s.sendJSON(w, http.StatusOK, ResumeListResponse{Resumes: resumes})
}

// GET /api/resumes/{id}
//
// Public: this is what shared links resolve, by internal ID or share ID.
func (s *Server) getResume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resume, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrResumeNotFound) {
			s.sendError(w, "Resume not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("failed to get resume")
		s.sendError(w, "Failed to get resume", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, resume)
}

// PUT /api/resumes/{id}
func (s *Server) updateResume(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrResumeNotFound) {
			s.sendError(w, "Resume not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("failed to get resume")
		s.sendError(w, "Failed to update resume", http.StatusInternalServerError)
		return
	}
	if existing.UserID != claims.UserID && claims.Role != types.RoleAdmin {
		s.sendError(w, "Not your resume", http.StatusForbidden)
		return
	}

	var req SaveResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	existing.Name = strings.TrimSpace(req.Name)
	existing.Content = req.Content
	existing.UpdatedAt = time.Now()
	if err := existing.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateResume(r.Context(), existing); err != nil {
		log.Error().Err(err).Msg("failed to update resume")
		s.sendError(w, "Failed to update resume", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, existing)
}

// DELETE /api/resumes/{id}
func (s *Server) deleteResume(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrResumeNotFound) {
			s.sendError(w, "Resume not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("failed to get resume")
		s.sendError(w, "Failed to delete resume", http.StatusInternalServerError)
		return
	}
	if existing.UserID != claims.UserID && claims.Role != types.RoleAdmin {
		s.sendError(w, "Not your resume", http.StatusForbidden)
		return
	}

	if err := s.store.DeleteResume(r.Context(), existing.ID); err != nil {
		log.Error().Err(err).Msg("failed to delete resume")
		s.sendError(w, "Failed to delete resume", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "Resume deleted"})
}

// GET /api/resumes/{id}/qr
//
// Returns a PNG QR code pointing at the resume's public share URL.
func (s *Server) resumeQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resume, err := s.store.GetResume(r.Context(), id)
	if err != nil {
		if errors.Is(err, interfaces.ErrResumeNotFound) {
			s.sendError(w, "Resume not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("failed to get resume")
		s.sendError(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	shareURL := fmt.Sprintf("%s/resume/%s",
		strings.TrimRight(s.cfg.HTTP.PublicBaseURL, "/"), resume.UniqueID)
	png, err := qrcode.Encode(shareURL, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode QR code")
		s.sendError(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// newShareID mints the short public identifier embedded in share links.
func newShareID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
