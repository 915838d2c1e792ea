package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopfront/apiserver/internal/db"
	"github.com/shopfront/apiserver/types"
)

const productColumns = `id, name, price, description, category_id, image_ref, owner_id, created_at, updated_at`

// ProductRepository handles persistence for products.
type ProductRepository struct {
	db db.DBTX
}

func NewProductRepository(conn db.DBTX) *ProductRepository {
	return &ProductRepository{db: conn}
}

func (r *ProductRepository) List(ctx context.Context, filter types.ProductFilter, offset, limit int) ([]types.Product, int, error) {
	const op = "store.ProductRepository.List"
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where := ""
	args := []any{}
	if filter.CategoryID != nil {
		where = "WHERE category_id = $1"
		args = append(args, *filter.CategoryID)
	}

	var total int
	countQuery := `SELECT COUNT(1) FROM products ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY id
		OFFSET $%d LIMIT $%d`, productColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	products := make([]types.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return products, total, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	const op = "store.ProductRepository.Get"
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// GetForShare reads a product and holds a share lock on its row until the
// surrounding transaction ends. Concurrent updates and deletes wait.
func (r *ProductRepository) GetForShare(ctx context.Context, id int) (types.Product, error) {
	const op = "store.ProductRepository.GetForShare"
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR SHARE`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// Create inserts a product. A missing category yields ErrInvalidReference.
func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	const op = "store.ProductRepository.Create"
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	const query = `
		INSERT INTO products (name, price, description, category_id, image_ref, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		nullableInt(product.CategoryID),
		product.ImageRef,
		product.OwnerID,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Product{}, ErrInvalidReference
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// Update overwrites the editable fields of a product. Ownership and creation
// time are left untouched.
func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	const op = "store.ProductRepository.Update"
	product.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE products
		SET name = $1,
			price = $2,
			description = $3,
			category_id = $4,
			image_ref = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		nullableInt(product.CategoryID),
		product.ImageRef,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Product{}, ErrInvalidReference
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return types.Product{}, ErrNotFound
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const op = "store.ProductRepository.Delete"
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (types.Product, error) {
	var product types.Product
	var categoryID sql.NullInt64
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&categoryID,
		&product.ImageRef,
		&product.OwnerID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return types.Product{}, err
	}
	if categoryID.Valid {
		id := int(categoryID.Int64)
		product.CategoryID = &id
	}
	return product, nil
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
