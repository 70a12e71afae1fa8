package app

import (
	"fmt"
	"time"

	"github.com/allisson/orderflow/internal/database"
	orderUsecase "github.com/allisson/orderflow/internal/order/usecase"
	outboxRepository "github.com/allisson/orderflow/internal/outbox/repository"
	outboxUsecase "github.com/allisson/orderflow/internal/outbox/usecase"
)

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUsecase.OutboxEventRepository, error) {
	return c.outboxRepository.get(func() (outboxUsecase.OutboxEventRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
		}
		if c.config.DBDriver == database.DriverMySQL {
			return outboxRepository.NewMySQLOutboxEventRepository(db), nil
		}
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	})
}

// OutboxStore returns the outbox store used to append and query events.
func (c *Container) OutboxStore() (*outboxUsecase.Store, error) {
	return c.outboxStore.get(func() (*outboxUsecase.Store, error) {
		repo, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for outbox store: %w", err)
		}
		return outboxUsecase.NewStore(repo), nil
	})
}

// HandlerRegistry returns the outbox handler registry with the order handlers bound.
func (c *Container) HandlerRegistry() (*outboxUsecase.HandlerRegistry, error) {
	return c.handlerRegistry.get(func() (*outboxUsecase.HandlerRegistry, error) {
		publisher, err := c.Publisher()
		if err != nil {
			return nil, fmt.Errorf("failed to get publisher for outbox handlers: %w", err)
		}
		registry := outboxUsecase.NewHandlerRegistry()
		if err := orderUsecase.RegisterOutboxHandlers(registry, publisher); err != nil {
			return nil, fmt.Errorf("failed to register outbox handlers: %w", err)
		}
		return registry, nil
	})
}

// Dispatcher returns the outbox dispatcher.
func (c *Container) Dispatcher() (*outboxUsecase.Dispatcher, error) {
	return c.dispatcher.get(func() (*outboxUsecase.Dispatcher, error) {
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for dispatcher: %w", err)
		}
		repo, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for dispatcher: %w", err)
		}
		registry, err := c.HandlerRegistry()
		if err != nil {
			return nil, err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for dispatcher: %w", err)
		}

		return outboxUsecase.NewDispatcher(txManager, repo, registry, businessMetrics, c.Logger(),
			outboxUsecase.DispatcherConfig{
				BatchSize:         c.config.OutboxBatchSize,
				Workers:           c.config.OutboxWorkers,
				MaxRetries:        c.config.OutboxMaxRetries,
				RetryCooldown:     c.config.OutboxRetryCooldown,
				ProcessingTimeout: c.config.OutboxProcessingStaleAfter,
				HandlerTimeout:    c.config.OutboxHandlerTimeout,
			}), nil
	})
}

// OutboxRetention is how long processed events are kept.
func (c *Container) OutboxRetention() time.Duration {
	return time.Duration(c.config.OutboxRetentionDays) * 24 * time.Hour
}
