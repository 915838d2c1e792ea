package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/types"
	"github.com/shopspring/decimal"
)

const (
	formFieldName        = "name"
	formFieldPrice       = "price"
	formFieldDescription = "description"
	formFieldCategory    = "category_id"
	formFieldImageRef    = "image_ref"
)

// ProductService is the catalog surface used by ProductHandler.
type ProductService interface {
	List(ctx context.Context, filter types.ProductFilter, offset, limit int) ([]types.Product, int, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error)
	Update(ctx context.Context, identity types.Identity, product types.Product) (types.Product, error)
	Delete(ctx context.Context, identity types.Identity, id int) error
	OpenImage(ctx context.Context, id int) (io.ReadCloser, string, error)
}

// ProductHandler provides HTTP handlers for the catalog.
type ProductHandler struct {
	products ProductService
	log      *slog.Logger
}

func NewProductHandler(products ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, log: log}
}

// ProductRouter registers product routes on the given router.
func ProductRouter(r chi.Router, handler *ProductHandler) {
	r.Get("/", handler.ListProducts)
	r.With(RequireAuth).Post("/", handler.CreateProduct)
	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", handler.GetProduct)
		r.Get("/image", handler.GetProductImage)
		r.With(RequireAuth).Put("/", handler.UpdateProduct)
		r.With(RequireAuth).Delete("/", handler.DeleteProduct)
	})
}

type ProductListResponse struct {
	Items []types.Product `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.ListProducts"

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	categoryID, err := parseOptionalID(r.URL.Query().Get(formFieldCategory))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid category id")
		return
	}

	items, total, err := h.products.List(r.Context(), types.ProductFilter{CategoryID: categoryID}, offset, limit)
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to list products")
		return
	}
	if items == nil {
		items = []types.Product{}
	}

	writeJSON(w, r, http.StatusOK, ProductListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.GetProduct"

	id, err := parseIDParam(r, "productID", "product")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to fetch product")
		return
	}

	writeJSON(w, r, http.StatusOK, product)
}

// GetProductImage streams the product's image object.
func (h *ProductHandler) GetProductImage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.GetProductImage"

	id, err := parseIDParam(r, "productID", "product")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reader, key, err := h.products.OpenImage(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to fetch image")
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.log.Warn("image stream interrupted",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logging.Err(err),
		)
	}
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.CreateProduct"

	product, err := parseProductForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.products.Create(r.Context(), identityFromContext(r.Context()), product)
	if err != nil {
		h.writeMutationError(w, r, op, err, "failed to create product")
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.UpdateProduct"

	id, err := parseIDParam(r, "productID", "product")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := parseProductForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	product.ID = id

	updated, err := h.products.Update(r.Context(), identityFromContext(r.Context()), product)
	if err != nil {
		h.writeMutationError(w, r, op, err, "failed to update product")
		return
	}

	writeJSON(w, r, http.StatusOK, updated)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProductHandler.DeleteProduct"

	id, err := parseIDParam(r, "productID", "product")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.products.Delete(r.Context(), identityFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeMutationError reports a missing category as a validation failure
// rather than a missing resource.
func (h *ProductHandler) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	if errors.Is(err, services.ErrCategoryNotFound) {
		writeError(w, r, http.StatusUnprocessableEntity, services.ErrCategoryNotFound.Error())
		return
	}
	writeServiceError(w, r, h.log, op, err, fallback)
}

func parseProductForm(r *http.Request) (types.Product, error) {
	rawPrice := strings.TrimSpace(r.FormValue(formFieldPrice))
	if rawPrice == "" {
		return types.Product{}, errors.New("price is required")
	}
	if strings.ContainsAny(rawPrice, "eE") {
		return types.Product{}, errors.New("invalid price")
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return types.Product{}, errors.New("invalid price")
	}

	categoryID, err := parseOptionalID(r.FormValue(formFieldCategory))
	if err != nil {
		return types.Product{}, errors.New("invalid category id")
	}

	return types.Product{
		Name:        r.FormValue(formFieldName),
		Price:       price,
		Description: r.FormValue(formFieldDescription),
		CategoryID:  categoryID,
		ImageRef:    strings.TrimSpace(r.FormValue(formFieldImageRef)),
	}, nil
}
