// Package workspace persists copilot workspaces between requests.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"copilot/api/internal/copilot"
)

var (
	ErrNotFound = errors.New("workspace not found")
	ErrConflict = errors.New("workspace changed concurrently")
)

// Store keeps one State per workspace id. Save writes unconditionally and is
// used to create a workspace. Update writes only when the stored revision is
// state.Revision-1 and returns ErrConflict otherwise.
type Store interface {
	Load(ctx context.Context, id string) (copilot.State, error)
	Save(ctx context.Context, state copilot.State) error
	Update(ctx context.Context, state copilot.State) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type memoryEntry struct {
	state     copilot.State
	expiresAt time.Time
}

// MemoryStore keeps workspaces in process memory, so they live as long as
// the process does or until their TTL passes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (copilot.State, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || s.expired(entry) {
		return copilot.State{}, ErrNotFound
	}
	return entry.state.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state copilot.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(state)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, state copilot.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[state.ID]
	if !ok || s.expired(current) {
		return ErrNotFound
	}
	if current.state.Revision != state.Revision-1 {
		return ErrConflict
	}
	s.put(state)
	return nil
}

// put must be called with mu held.
func (s *MemoryStore) put(state copilot.State) {
	entry := memoryEntry{state: state.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[state.ID] = entry
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
