// Package http provides the operational HTTP surface: health, readiness, stats and metrics.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/httputil"
	"github.com/allisson/orderflow/internal/metrics"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Server represents the ops HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
	checks map[string]ReadinessCheck
	stats  map[string]metrics.StatusCounter
}

// NewServer creates a new ops HTTP server. The database is always part of readiness.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		checks: make(map[string]ReadinessCheck),
		stats:  make(map[string]metrics.StatusCounter),
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// AddReadinessCheck adds a named dependency to the readiness report.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

// AddStatsSource exposes a per-status counter under /stats.
func (s *Server) AddStatsSource(name string, counter metrics.StatusCounter) {
	s.stats[name] = counter
}

// SetupRouter configures the router. meterProvider may be nil when metrics are disabled.
func (s *Server) SetupRouter(meterProvider metric.MeterProvider, metricsNamespace string) {
	router := newRouter(s.logger)
	if meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider, metricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)
	router.GET("/stats", s.statsHandler)

	s.router = router
}

// newRouter returns an engine with panic recovery, UUIDv7 request ids and request logging.
func newRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))
	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		s.SetupRouter(nil, "")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler pings the database and every registered dependency.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string, len(s.checks)+1)
	ready := true

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		ready = false
	} else {
		components["database"] = "ok"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
			components[name] = "error"
			ready = false
			continue
		}
		components[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// statsHandler reports record counts per status for every source, or for the one
// named by the source query parameter.
func (s *Server) statsHandler(c *gin.Context) {
	names := make([]string, 0, len(s.stats))
	if source := c.Query("source"); source != "" {
		if _, ok := s.stats[source]; !ok {
			httputil.HandleErrorGin(c, apperrors.Wrapf(apperrors.ErrNotFound, "stats source %q", source), s.logger)
			return
		}
		names = append(names, source)
	} else {
		for name := range s.stats {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	result := make(map[string]map[string]int64, len(names))
	for _, name := range names {
		counts, err := s.stats[name](c.Request.Context())
		if err != nil {
			httputil.HandleErrorGin(c, apperrors.Wrapf(err, "failed to count %s", name), s.logger)
			return
		}
		result[name] = counts
	}
	c.JSON(http.StatusOK, result)
}
