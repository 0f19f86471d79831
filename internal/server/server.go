// Package server provides the HTTP surface of the draw session: a JSON API, a
// WebSocket feed of session events and scene updates, the camera preview and
// the browser UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration. Every field is optional; routes
// whose collaborator is missing are not registered.
type Config struct {
	StaticDir  string
	Controller api.Controller
	Store      *store.Store
	Hub        *Hub
	Frames     *capture.Latest
	Metrics    http.Handler
	Logger     *slog.Logger
}

// Server is the HTTP server.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
	logger *slog.Logger
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if s.config.Controller != nil {
			api.NewSessionHandler(s.config.Controller).Routes(r)
		}
		if s.config.Store != nil {
			api.NewSettingsHandler(s.config.Store).Routes(r)
		}
		if s.config.Hub != nil {
			r.Get("/ws", s.config.Hub.ServeHTTP)
		}
		if s.config.Frames != nil {
			r.Get("/stream", NewStreamHandler(s.config.Frames).ServeHTTP)
		}
	})

	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams and sockets end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
