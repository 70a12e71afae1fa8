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

// MySQLOrderRepository handles order persistence for MySQL. IDs are stored as BINARY(16).
type MySQLOrderRepository struct {
	db *sql.DB
}

// NewMySQLOrderRepository creates a new MySQLOrderRepository
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{
		db: db,
	}
}

// Create inserts a new order
func (r *MySQLOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := order.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, order.CustomerName, order.ProductName,
		order.Amount, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// Get retrieves an order by ID
func (r *MySQLOrderRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

// GetForUpdate retrieves an order by ID and locks the row until the transaction ends
func (r *MySQLOrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id)
}

// Update persists the mutable order fields
func (r *MySQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := order.ID.MarshalBinary()
	if err != nil {
		return err
	}

	query := `UPDATE orders SET customer_name = ?, product_name = ?, amount = ?, status = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, order.CustomerName, order.ProductName, order.Amount,
		order.Status, order.UpdatedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	// MySQL reports changed rows, so rewriting identical values affects zero rows.
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, order.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an order
func (r *MySQLOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, idBytes)
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

func (r *MySQLOrderRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Order, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var (
		order     domain.Order
		scannedID []byte
	)
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(&scannedID, &order.CustomerName, &order.ProductName,
		&order.Amount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order")
	}
	if err := order.ID.UnmarshalBinary(scannedID); err != nil {
		return nil, err
	}
	return &order, nil
}
