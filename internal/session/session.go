// Package session issues and resolves signed session tokens.
//
// A token is an HS256 JWT whose subject is the user id and whose jti names a
// server-side record. The record lets a session be revoked before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
)

const DefaultTTL = 24 * time.Hour

// Backend stores live session ids.
type Backend interface {
	Save(ctx context.Context, sessionID string, userID int, ttl time.Duration) error
	// Lookup returns the user id bound to sessionID, or ok=false when the
	// session is unknown or expired.
	Lookup(ctx context.Context, sessionID string) (userID int, ok bool, err error)
	Delete(ctx context.Context, sessionID string) error
}

// UserLookup loads users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Manager establishes, resolves and clears sessions.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	backend Backend
	users   UserLookup
	log     *slog.Logger
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, backend Backend, users UserLookup, log *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		backend: backend,
		users:   users,
		log:     log,
		now:     time.Now,
	}, nil
}

// TTL is the lifetime of newly established sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Establish records a new session for identity and returns its token.
func (m *Manager) Establish(ctx context.Context, identity types.Identity) (string, error) {
	const op = "session.Manager.Establish"
	if !identity.Authenticated() {
		return "", fmt.Errorf("%s: anonymous identity", op)
	}

	sessionID := uuid.NewString()
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Subject:   strconv.Itoa(identity.UserID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%s: sign: %w", op, err)
	}

	if err := m.backend.Save(ctx, sessionID, identity.UserID, m.ttl); err != nil {
		return "", fmt.Errorf("%s: save: %w", op, err)
	}
	return token, nil
}

// Resolve returns the identity behind token. Any problem with the token,
// the session record or the user yields ok=false; it never fails the caller.
func (m *Manager) Resolve(ctx context.Context, token string) (types.Identity, bool) {
	const op = "session.Manager.Resolve"

	claims, userID, err := m.parse(token)
	if err != nil {
		return types.Identity{}, false
	}

	storedID, ok, err := m.backend.Lookup(ctx, claims.ID)
	if err != nil {
		m.log.Error("session lookup failed", slog.String("op", op), logging.Err(err))
		return types.Identity{}, false
	}
	if !ok || storedID != userID {
		return types.Identity{}, false
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Error("session user lookup failed", slog.String("op", op), slog.Int("user_id", userID), logging.Err(err))
		}
		return types.Identity{}, false
	}
	return types.Identity{UserID: user.ID, Username: user.Username}, true
}

// Clear revokes the session behind token. Invalid tokens are ignored.
func (m *Manager) Clear(ctx context.Context, token string) error {
	claims, _, err := m.parse(token)
	if err != nil {
		return nil
	}
	if err := m.backend.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("session.Manager.Clear: %w", err)
	}
	return nil
}

func (m *Manager) parse(token string) (jwt.RegisteredClaims, int, error) {
	claims := jwt.RegisteredClaims{}
	if strings.TrimSpace(token) == "" {
		return claims, 0, errors.New("empty token")
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return claims, 0, err
	}
	if !parsed.Valid {
		return claims, 0, errors.New("invalid token")
	}
	if claims.ID == "" {
		return claims, 0, errors.New("missing session id")
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return claims, 0, errors.New("invalid subject")
	}
	return claims, userID, nil
}
