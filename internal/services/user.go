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

const maxUsernameLen = 100

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService is the credential store: it owns account creation and lookup.
type UserService struct {
	repo   UserRepository
	hasher *PasswordHasher
}

func NewUserService(repo UserRepository, hasher *PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

// Create registers a user with a bcrypt-hashed secret. An existing username
// fails with ErrDuplicateUsername and leaves the stored account untouched.
func (s *UserService) Create(ctx context.Context, username, secret string) (types.User, error) {
	const op = "services.UserService.Create"

	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return types.User{}, fmt.Errorf("%w: username and secret are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return types.User{}, fmt.Errorf("%w: username must be at most %d characters", ErrInvalidInput, maxUsernameLen)
	}
	if len(secret) > maxSecretBytes {
		return types.User{}, fmt.Errorf("%w: secret must be at most %d bytes", ErrInvalidInput, maxSecretBytes)
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := s.hasher.Hash(secret)
	if err != nil {
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.Create(ctx, types.User{Username: username, PasswordHash: hashed})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrDuplicateUsername
		}
		return types.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}
