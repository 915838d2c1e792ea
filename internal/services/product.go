package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/storage"
	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	maxProductNameLen  = 200
	maxDescriptionLen  = 10000
	priceDecimalPlaces = 2
)

// Prices are stored as NUMERIC(12,2): ten digits before the point. Scales
// beyond maxPriceScale are rejected before rounding.
const (
	maxPriceIntegerDigits = 10
	maxPriceScale         = 12
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context, filter types.ProductFilter, offset, limit int) ([]types.Product, int, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id int) error
}

// ImageStore reads and removes product images by object key.
type ImageStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ProductService encapsulates catalog use-cases.
type ProductService struct {
	repo   ProductRepository
	images ImageStore
	log    *slog.Logger
}

// NewProductService constructs the catalog service. images may be nil when
// no object storage is configured.
func NewProductService(repo ProductRepository, images ImageStore, log *slog.Logger) *ProductService {
	return &ProductService{repo: repo, images: images, log: log}
}

func (s *ProductService) List(ctx context.Context, filter types.ProductFilter, offset, limit int) ([]types.Product, int, error) {
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *ProductService) Get(ctx context.Context, id int) (types.Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Product{}, ErrProductNotFound
		}
		return types.Product{}, err
	}
	return product, nil
}

// Create adds a product owned by the caller.
func (s *ProductService) Create(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error) {
	const op = "services.ProductService.Create"
	if !identity.Authenticated() {
		return types.Product{}, ErrUnauthenticated
	}
	product, err := normalizeProduct(product, identity.UserID)
	if err != nil {
		return types.Product{}, err
	}
	product.OwnerID = identity.UserID

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if errors.Is(err, store.ErrInvalidReference) {
			return types.Product{}, ErrCategoryNotFound
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Update replaces the editable fields of a product the caller owns.
// Existing orders keep their snapshot.
func (s *ProductService) Update(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error) {
	const op = "services.ProductService.Update"
	if !identity.Authenticated() {
		return types.Product{}, ErrUnauthenticated
	}
	product, err := normalizeProduct(product, identity.UserID)
	if err != nil {
		return types.Product{}, err
	}

	existing, err := s.ownedProduct(ctx, identity, product.ID)
	if err != nil {
		return types.Product{}, err
	}
	product.OwnerID = existing.OwnerID
	product.CreatedAt = existing.CreatedAt

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Product{}, ErrProductNotFound
		case errors.Is(err, store.ErrInvalidReference):
			return types.Product{}, ErrCategoryNotFound
		}
		return types.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete removes a product the caller owns together with its image object.
func (s *ProductService) Delete(ctx context.Context, identity types.Identity, id int) error {
	const op = "services.ProductService.Delete"
	if !identity.Authenticated() {
		return ErrUnauthenticated
	}

	existing, err := s.ownedProduct(ctx, identity, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if existing.ImageRef != "" && s.images != nil {
		if err := s.images.Delete(ctx, existing.ImageRef); err != nil {
			s.log.Warn("failed to delete product image",
				slog.String("op", op),
				slog.Int("product_id", id),
				slog.String("image_ref", existing.ImageRef),
				logging.Err(err),
			)
		}
	}
	return nil
}

// OpenImage streams the image referenced by the product. The caller closes
// the reader. The returned key is the object key, useful for content typing.
func (s *ProductService) OpenImage(ctx context.Context, id int) (io.ReadCloser, string, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if product.ImageRef == "" || s.images == nil {
		return nil, "", ErrImageNotFound
	}

	reader, err := s.images.Get(ctx, product.ImageRef)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", ErrImageNotFound
		}
		return nil, "", fmt.Errorf("services.ProductService.OpenImage: %w", err)
	}
	return reader, product.ImageRef, nil
}

func (s *ProductService) ownedProduct(ctx context.Context, identity types.Identity, id int) (types.Product, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	if existing.OwnerID != identity.UserID {
		return types.Product{}, ErrForbidden
	}
	return existing, nil
}

// ImageRefPrefix is the object key namespace a user's product images live in.
func ImageRefPrefix(ownerID int) string {
	return fmt.Sprintf("products/%d/", ownerID)
}

func normalizeProduct(product types.Product, ownerID int) (types.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.Description = strings.TrimSpace(product.Description)
	product.ImageRef = strings.TrimSpace(product.ImageRef)
	if product.Price.IsZero() {
		product.Price = decimal.Zero
	}

	switch {
	case product.Name == "":
		return types.Product{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case utf8.RuneCountInString(product.Name) > maxProductNameLen:
		return types.Product{}, fmt.Errorf("%w: name is too long", ErrInvalidInput)
	case utf8.RuneCountInString(product.Description) > maxDescriptionLen:
		return types.Product{}, fmt.Errorf("%w: description is too long", ErrInvalidInput)
	case product.Price.IsNegative():
		return types.Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case product.Price.NumDigits()+int(product.Price.Exponent()) > maxPriceIntegerDigits:
		return types.Product{}, fmt.Errorf("%w: price must be at most 9999999999.99", ErrInvalidInput)
	case product.Price.Exponent() < -maxPriceScale,
		!product.Price.Equal(product.Price.Round(priceDecimalPlaces)):
		return types.Product{}, fmt.Errorf("%w: price has too many decimal places", ErrInvalidInput)
	case product.ImageRef != "" && !validImageRef(product.ImageRef, ownerID):
		return types.Product{}, fmt.Errorf("%w: image_ref must be an object under %s", ErrInvalidInput, ImageRefPrefix(ownerID))
	}
	return product, nil
}

// validImageRef accepts clean keys inside the owner's namespace only.
func validImageRef(ref string, ownerID int) bool {
	prefix := ImageRefPrefix(ownerID)
	if !strings.HasPrefix(ref, prefix) || len(ref) == len(prefix) {
		return false
	}
	if strings.ContainsAny(ref, "\\\x00") || path.Clean(ref) != ref {
		return false
	}
	return true
}
