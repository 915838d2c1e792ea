package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
)

const maxCategoryNameLen = 100

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Delete(ctx context.Context, id int) error
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Create(ctx context.Context, identity types.Identity, name string) (types.Category, error) {
	const op = "services.CategoryService.Create"
	if !identity.Authenticated() {
		return types.Category{}, ErrUnauthenticated
	}

	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxCategoryNameLen {
		return types.Category{}, fmt.Errorf("%w: category name must be 1 to %d characters", ErrInvalidInput, maxCategoryNameLen)
	}

	category, err := s.repo.Create(ctx, types.Category{Name: name})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Category{}, ErrDuplicateCategory
		}
		return types.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	return category, nil
}

// Delete removes an unused category. Categories that still have products
// fail with ErrCategoryInUse.
func (s *CategoryService) Delete(ctx context.Context, identity types.Identity, id int) error {
	const op = "services.CategoryService.Delete"
	if !identity.Authenticated() {
		return ErrUnauthenticated
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrCategoryNotFound
		case errors.Is(err, store.ErrInUse):
			return ErrCategoryInUse
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
