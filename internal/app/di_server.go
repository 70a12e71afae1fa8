package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/allisson/orderflow/internal/http"
	"github.com/allisson/orderflow/internal/metrics"
	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	"github.com/allisson/orderflow/internal/scheduler"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
)

// HTTPServer returns the ops server with health, readiness and stats endpoints.
func (c *Container) HTTPServer() (*http.Server, error) {
	return c.httpServer.get(func() (*http.Server, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for http server: %w", err)
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}

		server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
		if c.config.LockBackend == LockBackendRedis {
			client, err := c.RedisClient()
			if err != nil {
				return nil, fmt.Errorf("failed to get redis client for readiness: %w", err)
			}
			server.AddReadinessCheck("redis", func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})
		}

		outboxCounts, sagaCounts, err := c.statusCounters()
		if err != nil {
			return nil, fmt.Errorf("failed to get status counters for http server: %w", err)
		}
		server.AddStatsSource("outbox_events", outboxCounts)
		server.AddStatsSource("sagas", sagaCounts)

		var meterProvider metric.MeterProvider
		if provider != nil {
			meterProvider = provider.MeterProvider()
		}
		server.SetupRouter(meterProvider, c.config.MetricsNamespace)
		return server, nil
	})
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
// The outbox and saga status gauges are registered with it.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return c.metricsServer.get(func() (*http.MetricsServer, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
		}
		if provider == nil {
			return nil, nil
		}
		if _, err := c.StatusGauges(); err != nil {
			return nil, err
		}
		return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
	})
}

// StatusGauges registers the outbox and saga per-status gauges and returns their
// unregister functions. Nothing is registered when metrics are disabled.
func (c *Container) StatusGauges() ([]func() error, error) {
	return c.statusGauges.get(func() ([]func() error, error) {
		provider, err := c.MetricsProvider()
		if err != nil || provider == nil {
			return nil, err
		}
		outboxCounts, sagaCounts, err := c.statusCounters()
		if err != nil {
			return nil, err
		}

		namespace := c.config.MetricsNamespace
		outboxGauge, err := metrics.RegisterStatusGauge(provider.MeterProvider(), namespace, "outbox_events",
			"Outbox events per status", outboxCounts)
		if err != nil {
			return nil, err
		}
		sagaGauge, err := metrics.RegisterStatusGauge(provider.MeterProvider(), namespace, "sagas",
			"Saga transactions per status", sagaCounts)
		if err != nil {
			return nil, err
		}
		return []func() error{outboxGauge.Unregister, sagaGauge.Unregister}, nil
	})
}

// statusCounters adapts the outbox and saga status counts to string keyed maps.
// Every known status is present, zero when no record has it.
func (c *Container) statusCounters() (metrics.StatusCounter, metrics.StatusCounter, error) {
	store, err := c.OutboxStore()
	if err != nil {
		return nil, nil, err
	}
	sagaRepo, err := c.SagaRepository()
	if err != nil {
		return nil, nil, err
	}

	outboxCounts := func(ctx context.Context) (map[string]int64, error) {
		counts, err := store.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(outboxDomain.AllStatuses))
		for _, status := range outboxDomain.AllStatuses {
			out[string(status)] = counts[status]
		}
		return out, nil
	}
	sagaCounts := func(ctx context.Context) (map[string]int64, error) {
		counts, err := sagaRepo.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int64, len(sagaDomain.AllSagaStatuses))
		for _, status := range sagaDomain.AllSagaStatuses {
			out[string(status)] = counts[status]
		}
		return out, nil
	}
	return outboxCounts, sagaCounts, nil
}

// Scheduler returns the background job scheduler with the outbox and saga jobs registered.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	return c.scheduler.get(func() (*scheduler.Scheduler, error) {
		locker, err := c.Locker()
		if err != nil {
			return nil, fmt.Errorf("failed to get locker for scheduler: %w", err)
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for scheduler: %w", err)
		}
		dispatcher, err := c.Dispatcher()
		if err != nil {
			return nil, err
		}
		store, err := c.OutboxStore()
		if err != nil {
			return nil, err
		}
		processor, err := c.SagaProcessor()
		if err != nil {
			return nil, err
		}

		s := scheduler.New(locker, businessMetrics, c.Logger())
		intervals := scheduler.JobIntervals{
			OutboxDispatch:  c.config.OutboxPollInterval,
			OutboxRetry:     c.config.OutboxRetryInterval,
			OutboxCleanup:   c.config.OutboxCleanupInterval,
			OutboxRetention: c.OutboxRetention(),
			SagaRecovery:    c.config.SagaRecoveryInterval,
		}
		if err := scheduler.Register(s, dispatcher, store, processor, intervals, c.Logger()); err != nil {
			return nil, fmt.Errorf("failed to register scheduled jobs: %w", err)
		}
		return s, nil
	})
}
