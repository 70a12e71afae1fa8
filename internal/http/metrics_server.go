package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/orderflow/internal/metrics"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own port. Worker nodes
// started without the ops server are probed through its /health route.
type MetricsServer struct {
	server    *http.Server
	logger    *slog.Logger
	namespace string
}

// NewMetricsServer creates a metrics server. With a nil provider metrics are disabled
// and only /health answers.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	provider *metrics.Provider,
) *MetricsServer {
	router := newRouter(logger)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "metrics": provider != nil})
	})

	var namespace string
	if provider != nil {
		namespace = provider.Namespace()
		router.GET("/metrics", gin.WrapH(provider.Handler()))
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: router,
			// Scrapes of the outbox and saga gauges run a count query per status.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  2 * time.Minute,
		},
		logger:    logger,
		namespace: namespace,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *MetricsServer) Start(_ context.Context) error {
	s.logger.Info("starting metrics server",
		slog.String("addr", s.server.Addr),
		slog.String("namespace", s.namespace),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
