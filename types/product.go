package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item that can be purchased.
type Product struct {
	// ID is the unique identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the display name. It is copied into orders at checkout.
	Name string `json:"name" db:"name"`

	// Price is the current non-negative unit price.
	Price decimal.Decimal `json:"price" db:"price"`

	// Description is free-form text shown on the product page.
	Description string `json:"description" db:"description"`

	// CategoryID optionally links the product to a category.
	CategoryID *int `json:"category_id,omitempty" db:"category_id"`

	// ImageRef is the object storage key of the product image, if any.
	ImageRef string `json:"image_ref,omitempty" db:"image_ref"`

	// OwnerID is the user who created the product. Only the owner may
	// edit or delete it.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// CreatedAt is the timestamp when the product was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *int
}
