package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/store"
)

type entry struct {
	state    *domain.PlayerState
	cachedAt time.Time
}

// StateCache is a TTL cache of authoritative player state in front of the
// store. Reads go through on miss or expiry; writes go through
// unconditionally and refresh the cache entry.
type StateCache struct {
	mu      sync.RWMutex
	backend store.Store
	ttl     time.Duration
	entries map[string]entry
	logger  *slog.Logger
}

// New creates a state cache over the given store.
func New(backend store.Store, ttl time.Duration, logger *slog.Logger) *StateCache {
	return &StateCache{
		backend: backend,
		ttl:     ttl,
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Get returns the user's state, fetching from the store when the cache
// entry is missing or older than the TTL. A user with no stored state gets
// the default starting state, which is cached but not persisted until the
// first write.
func (c *StateCache) Get(ctx context.Context, userID string) (*domain.PlayerState, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if ok && time.Since(e.cachedAt) < c.ttl {
		return e.state.Clone(), nil
	}

	state, err := c.backend.GetPlayerState(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			state = domain.NewPlayerState(userID)
			c.logger.Debug("materialized default state", "user_id", userID)
		} else {
			return nil, fmt.Errorf("fetching player state: %w", err)
		}
	}

	c.mu.Lock()
	c.entries[userID] = entry{state: state.Clone(), cachedAt: time.Now()}
	c.mu.Unlock()

	return state, nil
}

// Put writes the state through to the store and refreshes the cache entry
// unconditionally.
func (c *StateCache) Put(ctx context.Context, state *domain.PlayerState) error {
	if err := c.backend.SavePlayerState(ctx, state); err != nil {
		return fmt.Errorf("saving player state: %w", err)
	}

	c.mu.Lock()
	c.entries[state.UserID] = entry{state: state.Clone(), cachedAt: time.Now()}
	c.mu.Unlock()

	return nil
}

// Invalidate drops the cache entry so the next Get refetches from the store.
func (c *StateCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
