package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/models"
	"github.com/desertthunder/linkd/internal/oauth"
	"github.com/desertthunder/linkd/internal/services"
	"github.com/desertthunder/linkd/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options holds the collaborators a [Server] is assembled from.
type Options struct {
	Addr      string
	PublicURL string
	AdminKey  string
	StateTTL  time.Duration
	States    models.StateCodeStore
	Spotify   *services.SpotifyService
	GPhotos   *services.GPhotosService
	Registry  *prometheus.Registry
	Logger    *log.Logger
}

// Server is the linking service's HTTP server.
type Server struct {
	router *BasicRouter
	srv    *http.Server
	logger *log.Logger
}

// New builds the router and registers every route.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if err := oauth.RegisterMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	router := NewBasicRouter()
	router.Use(middleware.RequestID, middleware.RealIP, RequestLogger(logger), middleware.Recoverer)

	router.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	for _, adapter := range []services.Adapter{opts.Spotify, opts.GPhotos} {
		router.Handler(NewOAuthHandler(adapter, opts.States, opts.StateTTL, opts.PublicURL, logger))
	}

	spotify := NewSpotifyHandler(opts.Spotify, logger)
	router.HandleFunc(http.MethodGet, "/api/spotify/songs/top", spotify.TopSongs)

	gphotos := NewGPhotosHandler(opts.GPhotos, logger)
	router.Handle(http.MethodGet, "/api/gphotos/albums", RequireAdminKey(opts.AdminKey)(http.HandlerFunc(gphotos.Albums)))
	router.HandleFunc(http.MethodGet, "/api/gphotos/image", gphotos.Image)

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
