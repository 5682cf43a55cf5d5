package cache

import (
	"context"
	"sync"
	"time"

	"stockpilot/backend/internal/domain"
)

// SessionCache holds assistant conversations. Entries expire after ttl; a
// non-positive ttl keeps them until deleted.
type SessionCache interface {
	Get(ctx context.Context, key string) (*domain.AssistantSession, bool, error)
	Set(ctx context.Context, key string, value *domain.AssistantSession, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	session   domain.AssistantSession
	expiresAt time.Time
}

// MemorySessionCache is the default in-process SessionCache.
type MemorySessionCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemorySessionCache) Get(_ context.Context, key string) (*domain.AssistantSession, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return cloneSession(entry.session), true, nil
}

func (c *MemorySessionCache) Set(_ context.Context, key string, value *domain.AssistantSession, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{session: *cloneSession(*value)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemorySessionCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func cloneSession(s domain.AssistantSession) *domain.AssistantSession {
	out := s
	out.Turns = append([]domain.ChatTurn(nil), s.Turns...)
	return &out
}
