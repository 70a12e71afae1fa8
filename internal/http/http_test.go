package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orderflow/internal/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPingableServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	server := NewServer(db, "127.0.0.1", 0, discardLogger())
	server.SetupRouter(nil, "")
	return server, mock
}

func get(t *testing.T, handler http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if w.Code != http.StatusNotFound {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestServer_Health(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.SetupRouter(nil, "")

	w, body := get(t, server.GetHandler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	requestID, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), requestID.Version())
}

func TestServer_Readiness(t *testing.T) {
	t.Run("ready when every dependency answers", func(t *testing.T) {
		server, mock := newPingableServer(t)
		server.AddReadinessCheck("lock", func(context.Context) error { return nil })
		mock.ExpectPing()

		w, body := get(t, server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, map[string]any{"database": "ok", "lock": "ok"}, body["components"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database down", func(t *testing.T) {
		server, mock := newPingableServer(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w, body := get(t, server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, map[string]any{"database": "error"}, body["components"])
	})

	t.Run("no database configured", func(t *testing.T) {
		server := NewServer(nil, "127.0.0.1", 0, discardLogger())
		server.SetupRouter(nil, "")

		w, _ := get(t, server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("failing extra check", func(t *testing.T) {
		server, mock := newPingableServer(t)
		server.AddReadinessCheck("redis", func(context.Context) error { return errors.New("i/o timeout") })
		mock.ExpectPing()

		w, body := get(t, server.GetHandler(), "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, map[string]any{"database": "ok", "redis": "error"}, body["components"])
	})
}

func TestServer_Stats(t *testing.T) {
	newStatsServer := func() *Server {
		server := NewServer(nil, "127.0.0.1", 0, discardLogger())
		server.AddStatsSource("outbox_events", func(context.Context) (map[string]int64, error) {
			return map[string]int64{"PENDING": 2, "PROCESSED": 5}, nil
		})
		server.AddStatsSource("sagas", func(context.Context) (map[string]int64, error) {
			return map[string]int64{"COMPLETED": 1}, nil
		})
		server.SetupRouter(nil, "")
		return server
	}

	t.Run("all sources", func(t *testing.T) {
		w, body := get(t, newStatsServer().GetHandler(), "/stats")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{
			"outbox_events": map[string]any{"PENDING": float64(2), "PROCESSED": float64(5)},
			"sagas":         map[string]any{"COMPLETED": float64(1)},
		}, body)
	})

	t.Run("single source", func(t *testing.T) {
		w, body := get(t, newStatsServer().GetHandler(), "/stats?source=sagas")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"sagas": map[string]any{"COMPLETED": float64(1)}}, body)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := httptest.NewRecorder()
		newStatsServer().GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats?source=orders", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not_found","message":"The requested resource was not found"}`, w.Body.String())
	})

	t.Run("counter failure", func(t *testing.T) {
		server := NewServer(nil, "127.0.0.1", 0, discardLogger())
		server.AddStatsSource("outbox_events", func(context.Context) (map[string]int64, error) {
			return nil, errors.New("connection reset")
		})
		server.SetupRouter(nil, "")

		w, body := get(t, server.GetHandler(), "/stats")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", body["error"])
	})

	t.Run("no sources", func(t *testing.T) {
		server := NewServer(nil, "127.0.0.1", 0, discardLogger())
		server.SetupRouter(nil, "")

		w, body := get(t, server.GetHandler(), "/stats")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, body)
	})
}

func TestServer_UnknownRoute(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.SetupRouter(nil, "")

	w, _ := get(t, server.GetHandler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RecordsHTTPMetrics(t *testing.T) {
	provider, err := metrics.NewProvider("ops_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.SetupRouter(provider.MeterProvider(), "ops_test")

	w, _ := get(t, server.GetHandler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	scrape := httptest.NewRecorder()
	provider.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "ops_test_http_requests_total")
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(context.Background()) }()

	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(shutdownCtx))

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCustomLoggerMiddleware_RecoversPanics(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("orderflow_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	counter, err := provider.MeterProvider().Meter("orderflow_test").
		Int64Counter("orderflow_test_outbox_events_dispatched_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), provider)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "orderflow_test_outbox_events_dispatched_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w, body := get(t, metricsServer.GetHandler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["metrics"])
	_, parseErr := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, parseErr)
}

func TestMetricsServer_Disabled(t *testing.T) {
	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), nil)

	w, body := get(t, metricsServer.GetHandler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["metrics"])

	w, _ = get(t, metricsServer.GetHandler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsServer_StartAndShutdown(t *testing.T) {
	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), nil)

	errChan := make(chan error, 1)
	go func() { errChan <- metricsServer.Start(context.Background()) }()

	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, metricsServer.Shutdown(shutdownCtx))

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("metrics server did not stop")
	}
}
