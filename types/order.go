package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order records a purchase. ProductName and TotalPrice are a snapshot taken
// at checkout and never change afterwards, even if the product is edited
// or deleted.
type Order struct {
	// ID is the unique identifier of the order.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the order.
	UserID int `json:"user_id" db:"user_id"`

	// ProductName is the product name at purchase time.
	ProductName string `json:"product_name" db:"product_name"`

	// TotalPrice is the product price at purchase time.
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`

	// CreatedAt is the purchase timestamp.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderCreatedEvent is published after a checkout commits.
type OrderCreatedEvent struct {
	OrderID     int             `json:"order_id"`
	UserID      int             `json:"user_id"`
	ProductName string          `json:"product_name"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}
