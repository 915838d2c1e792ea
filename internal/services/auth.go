package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
)

// AuthService verifies credentials against the user store.
type AuthService struct {
	users     UserRepository
	hasher    *PasswordHasher
	dummyHash string
}

// NewAuthService precomputes a hash used to keep the unknown-user path as
// slow as a real comparison.
func NewAuthService(users UserRepository, hasher *PasswordHasher) (*AuthService, error) {
	dummy, err := hasher.Hash("shopfront-dummy-secret")
	if err != nil {
		return nil, err
	}
	return &AuthService{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Authenticate returns the identity for a valid username/secret pair.
// Unknown usernames and wrong secrets both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, secret string) (types.Identity, error) {
	const op = "services.AuthService.Authenticate"

	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return types.Identity{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Compare(s.dummyHash, secret)
			return types.Identity{}, ErrInvalidCredentials
		}
		return types.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Compare(user.PasswordHash, secret) {
		return types.Identity{}, ErrInvalidCredentials
	}

	return types.Identity{UserID: user.ID, Username: user.Username}, nil
}
