package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopfront/apiserver/types"
)

type CategoryService interface {
	List(ctx context.Context) ([]types.Category, error)
	Create(ctx context.Context, identity types.Identity, name string) (types.Category, error)
	Delete(ctx context.Context, identity types.Identity, id int) error
}

type CategoryHandler struct {
	categories CategoryService
	log        *slog.Logger
}

func NewCategoryHandler(categories CategoryService, log *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, log: log}
}

// CategoryRouter registers category routes on the given router.
func CategoryRouter(r chi.Router, handler *CategoryHandler) {
	r.Get("/", handler.ListCategories)
	r.With(RequireAuth).Post("/", handler.CreateCategory)
	r.With(RequireAuth).Delete("/{categoryID}", handler.DeleteCategory)
}

type categoryForm struct {
	Name string `validate:"required,max=100"`
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CategoryHandler.ListCategories"

	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []types.Category{}
	}
	writeJSON(w, r, http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CategoryHandler.CreateCategory"

	form := categoryForm{Name: strings.TrimSpace(r.FormValue("name"))}
	if err := validate.Struct(form); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	category, err := h.categories.Create(r.Context(), identityFromContext(r.Context()), form.Name)
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to create category")
		return
	}
	writeJSON(w, r, http.StatusCreated, category)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CategoryHandler.DeleteCategory"

	id, err := parseIDParam(r, "categoryID", "category")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.categories.Delete(r.Context(), identityFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
