package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/reqtag/internal/api/auth"
	"github.com/jon4hz/reqtag/internal/api/handler"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Server is the admin API.
type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    handler.Engine
}

// New creates the admin API server.
func New(cfg *config.Config, e handler.Engine) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		log.Warn("No API key configured, the admin API is read-only")
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		engine:    e,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery(), requestLogger())

	h := handler.New(s.engine)

	s.ginEngine.GET("/healthz", h.Health)
	s.ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.ginEngine.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression), auth.RequireAPIKey(s.cfg.APIKey))

	api.GET("/runs", h.GetRuns)
	api.GET("/runs/:id", h.GetRun)
	api.GET("/stats", h.GetStats)

	api.GET("/jobs", h.GetSchedulerJobs)
	api.POST("/jobs/:id/run", h.RunSchedulerJob)
	api.POST("/jobs/:id/enable", h.EnableSchedulerJob)
	api.POST("/jobs/:id/disable", h.DisableSchedulerJob)

	api.GET("/cache/stats", h.GetCacheStats)
	api.POST("/cache/clear", h.ClearCache)
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting admin API", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	log.Info("Stopping admin API")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("API request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}
