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

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db db.DBTX
}

func NewCategoryRepository(conn db.DBTX) *CategoryRepository {
	return &CategoryRepository{db: conn}
}

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	const op = "store.CategoryRepository.List"
	const query = `SELECT id, name, created_at FROM categories ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		var category types.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return categories, nil
}

func (r *CategoryRepository) Get(ctx context.Context, id int) (types.Category, error) {
	const op = "store.CategoryRepository.Get"
	const query = `SELECT id, name, created_at FROM categories WHERE id = $1`
	var category types.Category
	err := r.db.QueryRowContext(ctx, query, id).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	return category, nil
}

// Create inserts a category. A taken name yields ErrConflict.
func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	const op = "store.CategoryRepository.Create"
	category.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO categories (name, created_at)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, category.Name, category.CreatedAt).Scan(&category.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Category{}, ErrConflict
		}
		return types.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	return category, nil
}

// Delete removes a category. Categories still referenced by products yield ErrInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	const op = "store.CategoryRepository.Delete"
	const query = `DELETE FROM categories WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
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
