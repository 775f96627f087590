package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"resumehub/internal/auth"
	"resumehub/internal/chat"
	"resumehub/internal/config"
	"resumehub/pkg/interfaces"
)

// Store is the persistence surface the API needs. Satisfied by
// *store.Manager; narrowed here so handlers stay testable with fakes.
type Store interface {
	interfaces.UserStore
	interfaces.ResumeStore
	interfaces.ViewStore
	HealthCheck(ctx context.Context) error
}

// Server is the HTTP API layer. No business logic lives here, only request
// decoding, authorization and JSON serialization.
type Server struct {
	store  Store
	relay  *chat.Relay
	issuer *auth.Issuer
	cfg    *config.Config
	router chi.Router
}

// NewServer wires routes and middleware for the REST API.
func NewServer(store Store, relay *chat.Relay, issuer *auth.Issuer, cfg *config.Config) *Server {
	s := &Server{
		store:  store,
		relay:  relay,
		issuer: issuer,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		// Public endpoints used by shared resume links.
		r.Get("/resumes/{id}", s.getResume)
		r.Get("/resumes/{id}/qr", s.resumeQR)
		r.Post("/track-view", s.trackView)

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/resumes", s.listResumes)
			r.Post("/resumes", s.createResume)
			r.Put("/resumes/{id}", s.updateResume)
			r.Delete("/resumes/{id}", s.deleteResume)
			r.Get("/views/{id}", s.listViews)
			r.Get("/views/{id}/summary", s.viewSummary)
		})
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Database  string         `json:"database"`
	Chat      map[string]int `json:"chat"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "connected",
		Chat:      s.relay.Stats(),
	}
	status := http.StatusOK
	if err := s.store.HealthCheck(r.Context()); err != nil {
		log.Warn().Err(err).Msg("health check: database unavailable")
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	s.sendJSON(w, status, resp)
}
