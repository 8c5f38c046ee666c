package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aleister1102/webmirror/internal/archiver"
	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/pipeline"
)

// Server exposes the mirror pipeline over HTTP.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	archiver *archiver.Archiver
	workDir  string
	validate *validator.Validate
	logger   zerolog.Logger
	http     *http.Server
}

func New(
	cfg config.ServerConfig,
	pl *pipeline.Pipeline,
	arc *archiver.Archiver,
	workDir string,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pl,
		archiver: arc,
		workDir:  workDir,
		validate: validator.New(),
		logger:   logger.With().Str("component", "Server").Logger(),
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
	}
	return s
}

// Router builds the HTTP surface. Exposed separately so tests can mount
// it on httptest servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleInfo)
	r.Get("/healthz", s.handleHealth)
	r.Post("/api/mirror", s.handleMirror)
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddress).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
