package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/metrics"
	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/types"
)

const sessionCookieName = "shopfront_session"

// Registrar creates and loads user accounts.
type Registrar interface {
	Create(ctx context.Context, username, secret string) (types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Authenticator verifies credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, secret string) (types.Identity, error)
}

// SessionManager issues, resolves and revokes session tokens.
type SessionManager interface {
	Establish(ctx context.Context, identity types.Identity) (string, error)
	Resolve(ctx context.Context, token string) (types.Identity, bool)
	Clear(ctx context.Context, token string) error
	TTL() time.Duration
}

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	users        Registrar
	auth         Authenticator
	sessions     SessionManager
	metrics      *metrics.Metrics
	cookieSecure bool
	log          *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users Registrar, auth Authenticator, sessions SessionManager, m *metrics.Metrics, cookieSecure bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		auth:         auth,
		sessions:     sessions,
		metrics:      m,
		cookieSecure: cookieSecure,
		log:          log,
	}
}

// AuthRouter registers auth routes on the given router. limit wraps the
// credential endpoints.
func AuthRouter(r chi.Router, handler *AuthHandler, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/register", handler.Register)
	r.With(limit).Post("/login", handler.Login)
	r.Get("/logout", handler.Logout)
	r.With(RequireAuth).Get("/me", handler.Me)
}

// LoadIdentity resolves the request's session token into an identity in the
// request context. Requests without a valid token continue anonymously.
func (h *AuthHandler) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := h.sessions.Resolve(r.Context(), token)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// RequireAuth rejects requests that carry no resolved identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identityFromContext(r.Context()).Authenticated() {
			writeError(w, r, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentialsForm struct {
	Username string `validate:"required,max=100"`
	Secret   string `validate:"required,max=72"`
}

func readCredentials(r *http.Request) (credentialsForm, error) {
	form := credentialsForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Secret:   formValue(r, "secret", "password"),
	}
	return form, validate.Struct(form)
}

// Register creates a new account and redirects to the login page.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.AuthHandler.Register"

	form, err := readCredentials(r)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	if _, err := h.users.Create(r.Context(), form.Username, form.Secret); err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to create user")
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Login verifies credentials, establishes a session and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.AuthHandler.Login"

	form, err := readCredentials(r)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), form.Username, form.Secret)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.metrics.LoginAttempt("invalid")
		} else {
			h.metrics.LoginAttempt("error")
		}
		writeServiceError(w, r, h.log, op, err, "failed to authenticate")
		return
	}

	token, err := h.sessions.Establish(r.Context(), identity)
	if err != nil {
		h.metrics.LoginAttempt("error")
		writeServiceError(w, r, h.log, op, err, "failed to create session")
		return
	}

	h.metrics.LoginAttempt("success")
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout revokes the current session, if any, and expires the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.sessions.Clear(r.Context(), token); err != nil {
			h.log.Warn("failed to clear session",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				logging.Err(err),
			)
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.AuthHandler.Me"

	identity := identityFromContext(r.Context())
	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, op, err, "failed to load user")
		return
	}

	writeJSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken prefers the session cookie and falls back to a bearer token.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token, err := bearerToken(r)
	if err != nil {
		return ""
	}
	return token
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
