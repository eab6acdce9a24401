// Package server is the reference gesture backend: the template catalog,
// window matching, plugin execution, the recording-state flag and a
// landmark WebSocket feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Plugins   *plugin.Manager
	Executor  *plugin.Executor
	Token     string // bearer token for recording-state writes; empty disables auth

	// Source feeds /ws/landmarks. Nil disables the endpoint.
	Source tracking.Source
	FPS    int
	Clock  clock.Clock

	Logger zerolog.Logger
}

// Server is the reference backend HTTP handler.
type Server struct {
	config    Config
	mux       *http.ServeMux
	start     time.Time
	catalog   *api.Catalog
	landmarks *LandmarksHandler
	log       zerolog.Logger
}

// New creates a new Server and loads the template catalog.
func New(config Config) (*Server, error) {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  config.Clock.Now(),
		log:    config.Logger.With().Str("component", "server").Logger(),
	}
	if config.Store != nil {
		s.catalog = api.NewCatalog(config.Store, config.Logger)
		if err := s.catalog.Reload(); err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		logger := s.config.Logger
		gestures := api.NewGestureHandler(s.config.Store, s.catalog, logger)
		samples := api.NewSamplesHandler(s.config.Store, s.catalog, logger)
		actions := api.NewActionHandler(s.config.Store, s.catalog)
		match := api.NewMatchHandler(s.catalog, s.config.Store, logger)

		var execute http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "No plugins configured", http.StatusServiceUnavailable)
		})
		if s.config.Plugins != nil {
			executor := s.config.Executor
			if executor == nil {
				executor = plugin.NewExecutor(plugin.DefaultTimeout)
			}
			execute = api.NewExecuteHandler(s.config.Store, s.config.Plugins, executor, logger)
		}

		// /api/gestures/{id}/{sub} routes by suffix, everything else is
		// the catalog itself.
		gestureRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/api/gestures/match":
				match.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/samples"):
				samples.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/action"):
				actions.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/execute"):
				execute.ServeHTTP(w, r)
			default:
				gestures.ServeHTTP(w, r)
			}
		})

		s.mux.Handle("/api/gestures", gestureRouter)
		s.mux.Handle("/api/gestures/", gestureRouter)
		s.mux.Handle("/api/recording-state", api.NewRecordingStateHandler(s.config.Store, s.config.Token, logger))
	}

	if s.config.Source != nil {
		s.landmarks = NewLandmarksHandler(s.config.Source, s.config.FPS, s.config.Clock, s.config.Logger)
		s.mux.Handle("/ws/landmarks", s.landmarks)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Catalog returns the template catalog, or nil without a store.
func (s *Server) Catalog() *api.Catalog {
	return s.catalog
}

// Landmarks returns the landmark feed, or nil without a source.
func (s *Server) Landmarks() *LandmarksHandler {
	return s.landmarks
}

// Run drives background work until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.landmarks != nil {
		s.landmarks.Run(ctx)
		return
	}
	<-ctx.Done()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": s.config.Clock.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Run(bgCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
