package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopfront/apiserver/internal/db"
	"github.com/shopfront/apiserver/types"
)

// OrderRepository handles persistence for orders.
type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(conn db.DBTX) *OrderRepository {
	return &OrderRepository{db: conn}
}

func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	const op = "store.OrderRepository.Create"
	order.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO orders (user_id, product_name, total_price, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		order.UserID,
		order.ProductName,
		order.TotalPrice,
		order.CreatedAt,
	).Scan(&order.ID); err != nil {
		return types.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// ListByUser returns the user's orders oldest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]types.Order, error) {
	const op = "store.OrderRepository.ListByUser"
	const query = `
		SELECT id, user_id, product_name, total_price, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := []types.Order{}
	for rows.Next() {
		var order types.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.ProductName,
			&order.TotalPrice,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
