package app

import (
	"fmt"
	"time"

	"github.com/allisson/orderflow/internal/database"
	"github.com/allisson/orderflow/internal/order/steps"
	sagaRepository "github.com/allisson/orderflow/internal/saga/repository"
	sagaUsecase "github.com/allisson/orderflow/internal/saga/usecase"
)

// SagaRepository returns the saga transaction repository based on database driver.
func (c *Container) SagaRepository() (sagaUsecase.SagaTransactionRepository, error) {
	return c.sagaRepository.get(func() (sagaUsecase.SagaTransactionRepository, error) {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for saga repository: %w", err)
		}
		if c.config.DBDriver == database.DriverMySQL {
			return sagaRepository.NewMySQLSagaRepository(db), nil
		}
		return sagaRepository.NewPostgreSQLSagaRepository(db), nil
	})
}

// SagaDefinitions returns the saga step definitions with the order sagas registered.
func (c *Container) SagaDefinitions() (*sagaUsecase.Definitions, error) {
	return c.sagaDefinitions.get(func() (*sagaUsecase.Definitions, error) {
		orders, err := c.OrderRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get order repository for saga steps: %w", err)
		}
		publisher, err := c.Publisher()
		if err != nil {
			return nil, fmt.Errorf("failed to get publisher for saga steps: %w", err)
		}

		definitions := sagaUsecase.NewDefinitions()
		if err := steps.Register(definitions, orders, publisher); err != nil {
			return nil, fmt.Errorf("failed to register order saga steps: %w", err)
		}
		return definitions, nil
	})
}

// Orchestrator returns the saga orchestrator.
func (c *Container) Orchestrator() (*sagaUsecase.Orchestrator, error) {
	return c.orchestrator.get(func() (*sagaUsecase.Orchestrator, error) {
		repo, err := c.SagaRepository()
		if err != nil {
			return nil, err
		}
		locker, err := c.Locker()
		if err != nil {
			return nil, fmt.Errorf("failed to get locker for orchestrator: %w", err)
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for orchestrator: %w", err)
		}

		return sagaUsecase.NewOrchestrator(repo, locker, businessMetrics, c.Logger(), sagaUsecase.OrchestratorConfig{
			StepTimeout: c.config.SagaStepTimeout,
			LockTTL:     c.config.SagaLockTTL,
		}), nil
	})
}

// SagaProcessor returns the saga recovery processor.
func (c *Container) SagaProcessor() (*sagaUsecase.Processor, error) {
	return c.sagaProcessor.get(func() (*sagaUsecase.Processor, error) {
		repo, err := c.SagaRepository()
		if err != nil {
			return nil, err
		}
		orchestrator, err := c.Orchestrator()
		if err != nil {
			return nil, err
		}
		definitions, err := c.SagaDefinitions()
		if err != nil {
			return nil, err
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for saga processor: %w", err)
		}

		return sagaUsecase.NewProcessor(repo, orchestrator, definitions, businessMetrics, c.Logger(),
			sagaUsecase.ProcessorConfig{
				StaleAfter:       c.config.SagaStaleAfter,
				Retention:        time.Duration(c.config.SagaRetentionDays) * 24 * time.Hour,
				CleanupBatchSize: c.config.SagaCleanupBatchSize,
			}), nil
	})
}
