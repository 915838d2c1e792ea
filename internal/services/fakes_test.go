package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopfront/apiserver/internal/store"
	"github.com/shopfront/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

// memoryUsers is an in-memory UserRepository honouring the unique username rule.
type memoryUsers struct {
	mu        sync.Mutex
	users     map[int]types.User
	nextID    int
	getErr    error
	createErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[int]types.User{}, nextID: 1}
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return types.User{}, m.getErr
	}
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return types.User{}, m.getErr
	}
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return types.User{}, m.createErr
	}
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
