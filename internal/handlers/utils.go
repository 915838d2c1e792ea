package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type contextKey string

const contextIdentityKey contextKey = "identity"

var validate = validator.New()

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// identityFromContext returns the identity resolved for this request, or the
// anonymous zero value.
func identityFromContext(ctx context.Context) types.Identity {
	identity, _ := ctx.Value(contextIdentityKey).(types.Identity)
	return identity
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, value any) {
	render.Status(r, status)
	render.JSON(w, r, value)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Error: message})
}

// writeServiceError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as a 500 with the fallback message.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, services.ErrInvalidCredentials.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, r, http.StatusForbidden, services.ErrForbidden.Error())
	case errors.Is(err, services.ErrDuplicateUsername),
		errors.Is(err, services.ErrDuplicateCategory),
		errors.Is(err, services.ErrCategoryInUse):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrImageNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		log.Error(fallback,
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			logging.Err(err),
		)
		writeError(w, r, http.StatusInternalServerError, fallback)
	}
}

// validationMessage renders validator errors as one human readable line.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters", field, fieldErr.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

// formValue returns the first non-empty form value among keys.
func formValue(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if value := r.FormValue(key); value != "" {
			return value
		}
	}
	return ""
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseIDParam(r *http.Request, param, name string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id", name)
	}
	return id, nil
}

func parseOptionalID(value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(value)
	if err != nil || id < 1 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}
