// Package repository provides data persistence implementations for orders.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
)

const orderColumns = `id, customer_name, product_name, amount, status, created_at, updated_at`

// PostgreSQLOrderRepository handles order persistence for PostgreSQL
type PostgreSQLOrderRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrderRepository creates a new PostgreSQLOrderRepository
func NewPostgreSQLOrderRepository(db *sql.DB) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{
		db: db,
	}
}

// Create inserts a new order
func (r *PostgreSQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(ctx, query, order.ID, order.CustomerName, order.ProductName,
		order.Amount, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// Get retrieves an order by ID
func (r *PostgreSQLOrderRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate retrieves an order by ID and locks the row until the transaction ends
func (r *PostgreSQLOrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// Update persists the mutable order fields
func (r *PostgreSQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE orders SET customer_name = $1, product_name = $2, amount = $3, status = $4, updated_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(ctx, query, order.CustomerName, order.ProductName, order.Amount,
		order.Status, order.UpdatedAt, order.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// Delete removes an order
func (r *PostgreSQLOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete order")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *PostgreSQLOrderRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	var order domain.Order
	err := querier.QueryRowContext(ctx, query, id).Scan(&order.ID, &order.CustomerName, &order.ProductName,
		&order.Amount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order")
	}
	return &order, nil
}
