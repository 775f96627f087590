package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"resumehub/internal/api"
	"resumehub/internal/auth"
	"resumehub/internal/chat"
	"resumehub/internal/config"
	"resumehub/internal/store"
	"resumehub/internal/websocket"
)

// Application wires every component and owns their lifecycles.
// Initialization order: store → relay → websocket → API → HTTP.
type Application struct {
	config     *config.Config
	store      *store.Manager
	relay      *chat.Relay
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication builds all components from a validated configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	storeManager, err := store.NewManager(store.Options{
		Path:            cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	relay := chat.NewRelay(chat.Options{
		RecruiterEmail: cfg.Chat.RecruiterEmail,
		RecruiterName:  cfg.Chat.RecruiterName,
		HistoryLimit:   cfg.Chat.HistoryLimit,
	}, storeManager)

	wsHandler := websocket.NewHandler(relay, cfg.WebSocket)
	issuer := auth.NewIssuer(cfg.Auth)
	apiServer := api.NewServer(storeManager, relay, issuer, cfg)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleChat)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      storeManager,
		relay:      relay,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the relay and then the HTTP server. The relay starts first
// so WebSocket upgrades never race a cold event loop.
func (app *Application) Start(ctx context.Context) error {
	log.Info().Str("addr", app.httpServer.Addr).Msg("starting resumehub")

	if err := app.relay.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat relay: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.relay.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Info().Msg("resumehub started")
		return nil
	case <-ctx.Done():
		_ = app.relay.Stop()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse order: HTTP → relay → store.
func (app *Application) Stop(ctx context.Context) error {
	log.Info().Msg("shutting down resumehub")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	if err := app.relay.Stop(); err != nil {
		log.Warn().Err(err).Msg("chat relay shutdown error")
	}
	if err := app.store.Close(); err != nil {
		log.Warn().Err(err).Msg("store shutdown error")
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
