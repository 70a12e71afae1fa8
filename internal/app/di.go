// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/orderflow/internal/config"
	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/http"
	"github.com/allisson/orderflow/internal/lock"
	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/notification"
	orderUsecase "github.com/allisson/orderflow/internal/order/usecase"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
	"github.com/allisson/orderflow/internal/scheduler"
	sagaUsecase "github.com/allisson/orderflow/internal/saga/usecase"
)

// Lock backends and notification drivers accepted by the configuration.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	NotificationDriverLog    = "log"
	NotificationDriverKafka  = "kafka"
	NotificationDriverPubSub = "pubsub"
)

// component builds a dependency once and remembers the outcome, error included.
type component[T any] struct {
	mu    sync.Mutex
	built bool
	value T
	err   error
}

func (c *component[T]) get(init func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.built {
		c.value, c.err = init()
		c.built = true
	}
	return c.value, c.err
}

// peek returns the value only if it was built successfully.
func (c *component[T]) peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.built && c.err == nil
}

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	loggerInit      sync.Once
	logger          *slog.Logger
	db              component[*sql.DB]
	txManager       component[database.TxManager]
	metricsProvider component[*metrics.Provider]
	businessMetrics component[metrics.BusinessMetrics]
	redisClient     component[*redis.Client]
	locker          component[lock.Locker]
	publisher       component[notification.Publisher]

	// Outbox
	outboxRepository component[outboxUsecase.OutboxEventRepository]
	outboxStore      component[*outboxUsecase.Store]
	handlerRegistry  component[*outboxUsecase.HandlerRegistry]
	dispatcher       component[*outboxUsecase.Dispatcher]

	// Saga
	sagaRepository  component[sagaUsecase.SagaTransactionRepository]
	sagaDefinitions component[*sagaUsecase.Definitions]
	orchestrator    component[*sagaUsecase.Orchestrator]
	sagaProcessor   component[*sagaUsecase.Processor]

	// Orders
	orderRepository    component[orderUsecase.OrderRepository]
	outboxOrderUseCase component[orderUsecase.OutboxOrderUseCase]
	sagaOrderUseCase   component[orderUsecase.SagaOrderUseCase]

	// Servers and workers
	httpServer    component[*http.Server]
	metricsServer component[*http.MetricsServer]
	scheduler     component[*scheduler.Scheduler]
	statusGauges  component[[]func() error]
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(c.initDB)
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	return c.txManager.get(func() (database.TxManager, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		return database.NewTxManager(db), nil
	})
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return c.metricsProvider.get(func() (*metrics.Provider, error) {
		if !c.config.MetricsEnabled {
			return nil, nil
		}
		return metrics.NewProvider(c.config.MetricsNamespace)
	})
}

// BusinessMetrics returns the business metrics recorder; a no-op one when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return c.businessMetrics.get(func() (metrics.BusinessMetrics, error) {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider: %w", err)
		}
		if provider == nil {
			return metrics.NewNoOpBusinessMetrics(), nil
		}
		return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	})
}

// RedisClient returns the redis client used by the redis lock backend.
func (c *Container) RedisClient() (*redis.Client, error) {
	return c.redisClient.get(func() (*redis.Client, error) {
		return lock.NewRedisClient(context.Background(), lock.RedisConfig{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
	})
}

// Locker returns the lock backend selected by LOCK_BACKEND.
func (c *Container) Locker() (lock.Locker, error) {
	return c.locker.get(func() (lock.Locker, error) {
		switch c.config.LockBackend {
		case LockBackendLocal, "":
			return lock.NewLocalLocker(), nil
		case LockBackendRedis:
			client, err := c.RedisClient()
			if err != nil {
				return nil, fmt.Errorf("failed to get redis client for locker: %w", err)
			}
			return lock.NewRedisLocker(client), nil
		default:
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unsupported lock backend: %s",
				c.config.LockBackend)
		}
	})
}

// Publisher returns the notification sink selected by NOTIFICATION_DRIVER, rate limited
// when NOTIFICATION_RATE_LIMIT_PER_SEC is positive.
func (c *Container) Publisher() (notification.Publisher, error) {
	return c.publisher.get(func() (notification.Publisher, error) {
		var (
			publisher notification.Publisher
			err       error
		)
		switch c.config.NotificationDriver {
		case NotificationDriverLog, "":
			publisher = notification.NewLogPublisher(c.Logger())
		case NotificationDriverKafka:
			publisher, err = notification.NewKafkaPublisher(c.config.KafkaSeedBrokers(), c.Logger())
		case NotificationDriverPubSub:
			publisher, err = notification.NewPubSubPublisher(context.Background(), c.config.PubSubTopicURL)
		default:
			err = apperrors.Wrapf(apperrors.ErrInvalidInput, "unsupported notification driver: %s",
				c.config.NotificationDriver)
		}
		if err != nil {
			return nil, err
		}
		return notification.NewRateLimitedPublisher(
			publisher,
			c.config.NotificationRateLimitPerSec,
			c.config.NotificationRateLimitBurst,
		), nil
	})
}

// Shutdown releases every initialized resource, servers first and the database last.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if server, ok := c.httpServer.peek(); ok && server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if server, ok := c.metricsServer.peek(); ok && server != nil {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if publisher, ok := c.publisher.peek(); ok && publisher != nil {
		if err := publisher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	}
	if unregister, ok := c.statusGauges.peek(); ok {
		for _, fn := range unregister {
			if err := fn(); err != nil {
				errs = append(errs, fmt.Errorf("status gauge unregister: %w", err))
			}
		}
	}
	if provider, ok := c.metricsProvider.peek(); ok && provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	if client, ok := c.redisClient.peek(); ok && client != nil {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if db, ok := c.db.peek(); ok && db != nil {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	return apperrors.Join(errs...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	switch c.config.DBDriver {
	case database.DriverPostgres, database.DriverMySQL:
	default:
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := database.Connect(context.Background(), database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
