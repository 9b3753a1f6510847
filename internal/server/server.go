// Package server exposes the job queue and manual retrieval surfaces
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/raphaelgruber/toolbrief/internal/jobs"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/processor"
	"github.com/raphaelgruber/toolbrief/internal/ratelimit"
	"github.com/raphaelgruber/toolbrief/internal/storage"
)

// Server wires the job store, processor, and manual store into an HTTP
// API.
type Server struct {
	cfg       config.Config
	store     jobs.Store
	manuals   *storage.ManualStore
	proc      *processor.Processor
	hub       *processor.Hub
	validator *llm.NameValidator
	ipLimiter *ratelimit.Limiter
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a server. hub, validator, and collector may be nil.
func New(
	cfg config.Config,
	store jobs.Store,
	manuals *storage.ManualStore,
	proc *processor.Processor,
	hub *processor.Hub,
	validator *llm.NameValidator,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = processor.NewHub()
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		manuals:   manuals,
		proc:      proc,
		hub:       hub,
		validator: validator,
		ipLimiter: ratelimit.New(cfg.RateLimitJobs, cfg.RateLimitWindow),
		collector: collector,
		logger:    logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogging(s.logger))

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/jobs", s.handleCreateJob)
		v1.GET("/jobs", s.handleListJobs)
		v1.GET("/jobs/:id", s.handleGetJob)
		v1.GET("/jobs/:id/position", s.handleQueuePosition)
		v1.GET("/jobs/:id/events", s.handleJobEvents)
		v1.DELETE("/jobs/:id", s.handleDeleteJob)

		v1.GET("/manuals/:slug", s.handleGetManual)
		v1.GET("/manuals/:slug/versions", s.handleManualVersions)

		admin := v1.Group("/admin", adminAuth(s.cfg.AdminSecret))
		{
			admin.POST("/process", s.handleAdminProcess)
			admin.DELETE("/jobs/:id", s.handleAdminDeleteJob)
			admin.DELETE("/jobs", s.handleAdminDeleteAllJobs)
			admin.GET("/stats", s.handleAdminStats)
		}
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}
