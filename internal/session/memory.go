package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	userID    int
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process memory. Sessions are lost on restart.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: map[string]memoryEntry{}, now: time.Now}
}

func (b *MemoryBackend) Save(_ context.Context, sessionID string, userID int, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweep()
	b.sessions[sessionID] = memoryEntry{userID: userID, expiresAt: b.now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Lookup(_ context.Context, sessionID string) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.sessions[sessionID]
	if !ok {
		return 0, false, nil
	}
	if !b.now().Before(entry.expiresAt) {
		delete(b.sessions, sessionID)
		return 0, false, nil
	}
	return entry.userID, true, nil
}

func (b *MemoryBackend) Delete(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
	return nil
}

// sweep drops expired entries. Callers hold b.mu.
func (b *MemoryBackend) sweep() {
	now := b.now()
	for id, entry := range b.sessions {
		if !now.Before(entry.expiresAt) {
			delete(b.sessions, id)
		}
	}
}
