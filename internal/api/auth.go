package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"resumehub/internal/auth"
	"resumehub/pkg/interfaces"
	"resumehub/pkg/types"
)

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	User   *types.User     `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// POST /api/auth/signup
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !types.IsValidPassword(req.Password) {
		s.sendError(w, "Password must be between 8 and 72 characters", http.StatusBadRequest)
		return
	}

	user := &types.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      types.RoleUser,
		CreatedAt: time.Now(),
	}
	if strings.EqualFold(user.Email, s.cfg.Auth.AdminEmail) {
		user.Role = types.RoleAdmin
	}
	if err := user.Validate(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		s.sendError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateEmail) {
			s.sendError(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("failed to create user")
		s.sendError(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	tokens, err := s.issuer.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue tokens")
		s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusCreated, AuthResponse{User: user, Tokens: tokens})
}

// POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			s.sendError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("failed to look up user")
		s.sendError(w, "Failed to log in", http.StatusInternalServerError)
		return
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		s.sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	tokens, err := s.issuer.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue tokens")
		s.sendError(w, "Failed to log in", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, AuthResponse{User: user, Tokens: tokens})
}

// POST /api/auth/refresh
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	claims, err := s.issuer.VerifyRefresh(req.RefreshToken)
	if err != nil {
		s.sendError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	// Re-read the user so revoked accounts stop refreshing.
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.sendError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	tokens, err := s.issuer.IssuePair(user.ID, user.Email, user.Role)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue tokens")
		s.sendError(w, "Failed to refresh session", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, AuthResponse{User: user, Tokens: tokens})
}
