package app

import (
	"fmt"

	"github.com/allisson/orderflow/internal/database"
	orderRepository "github.com/allisson/orderflow/internal/order/repository"
	orderUsecase "github.com/allisson/orderflow/internal/order/usecase"
)

// OrderRepository returns the order repository based on database driver.
func (c *Container) OrderRepository() (orderUsecase.OrderRepository, error) {
	return c.orderRepository.get(func() (orderUsecase.OrderRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for order repository: %w", err)
		}
		if c.config.DBDriver == database.DriverMySQL {
			return orderRepository.NewMySQLOrderRepository(db), nil
		}
		return orderRepository.NewPostgreSQLOrderRepository(db), nil
	})
}

// OutboxOrderUseCase returns the order use case that writes through the outbox.
func (c *Container) OutboxOrderUseCase() (orderUsecase.OutboxOrderUseCase, error) {
	return c.outboxOrderUseCase.get(func() (orderUsecase.OutboxOrderUseCase, error) {
		txManager, err := c.TxManager()
		if err != nil {
			return nil, fmt.Errorf("failed to get tx manager for order use case: %w", err)
		}
		orders, err := c.OrderRepository()
		if err != nil {
			return nil, err
		}
		store, err := c.OutboxStore()
		if err != nil {
			return nil, err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for order use case: %w", err)
		}

		useCase := orderUsecase.NewOutboxOrderUseCase(txManager, orders, store, c.Logger())
		return orderUsecase.NewOutboxOrderUseCaseWithMetrics(useCase, businessMetrics), nil
	})
}

// SagaOrderUseCase returns the order use case driven by sagas.
func (c *Container) SagaOrderUseCase() (orderUsecase.SagaOrderUseCase, error) {
	return c.sagaOrderUseCase.get(func() (orderUsecase.SagaOrderUseCase, error) {
		orchestrator, err := c.Orchestrator()
		if err != nil {
			return nil, err
		}
		definitions, err := c.SagaDefinitions()
		if err != nil {
			return nil, err
		}
		repo, err := c.SagaRepository()
		if err != nil {
			return nil, err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for saga order use case: %w", err)
		}

		useCase := orderUsecase.NewSagaOrderUseCase(orchestrator, definitions, repo, c.Logger())
		return orderUsecase.NewSagaOrderUseCaseWithMetrics(useCase, businessMetrics), nil
	})
}
