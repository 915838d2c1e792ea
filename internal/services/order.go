package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopfront/apiserver/internal/db"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
)

// ProductLocker reads a product and locks it for the rest of the transaction.
type ProductLocker interface {
	GetForShare(ctx context.Context, id int) (types.Product, error)
}

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order types.Order) (types.Order, error)
	ListByUser(ctx context.Context, userID int) ([]types.Order, error)
}

// OrderEventPublisher announces committed orders.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order types.Order) error
}

// OrderRepositories builds repositories bound to a connection or transaction.
type OrderRepositories struct {
	Products func(conn db.DBTX) ProductLocker
	Orders   func(conn db.DBTX) OrderRepository
}

// SQLOrderRepositories binds OrderRepositories to the SQL store.
func SQLOrderRepositories() OrderRepositories {
	return OrderRepositories{
		Products: func(conn db.DBTX) ProductLocker { return store.NewProductRepository(conn) },
		Orders:   func(conn db.DBTX) OrderRepository { return store.NewOrderRepository(conn) },
	}
}

// OrderService handles checkout and order history.
type OrderService struct {
	db     *sql.DB
	repos  OrderRepositories
	events OrderEventPublisher
	log    *slog.Logger
}

// NewOrderService constructs the order service. events may be nil.
func NewOrderService(conn *sql.DB, repos OrderRepositories, events OrderEventPublisher, log *slog.Logger) *OrderService {
	return &OrderService{db: conn, repos: repos, events: events, log: log}
}

// Checkout records an order for the caller holding a snapshot of the
// product's current name and price. The product read and the insert share one
// transaction; nothing is written when the product does not exist.
func (s *OrderService) Checkout(ctx context.Context, identity types.Identity, productID int) (types.Order, error) {
	const op = "services.OrderService.Checkout"
	if !identity.Authenticated() {
		return types.Order{}, ErrUnauthenticated
	}

	var order types.Order
	err := db.WithTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		product, err := s.repos.Products(tx).GetForShare(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		order, err = s.repos.Orders(tx).Create(ctx, types.Order{
			UserID:      identity.UserID,
			ProductName: product.Name,
			TotalPrice:  product.Price,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return types.Order{}, err
		}
		return types.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.log.Error("failed to publish order event",
				slog.String("op", op),
				slog.Int("order_id", order.ID),
				logging.Err(err),
			)
		}
	}

	return order, nil
}

// ListOrders returns the caller's orders oldest first.
func (s *OrderService) ListOrders(ctx context.Context, identity types.Identity) ([]types.Order, error) {
	const op = "services.OrderService.ListOrders"
	if !identity.Authenticated() {
		return nil, ErrUnauthenticated
	}

	orders, err := s.repos.Orders(s.db).ListByUser(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
