// Package auth contains the authorization core: bearer token validation
// against the identity provider, the role and scope policy, and token
// revocation.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RevocationStore is the persistence behind the revocation cache
type RevocationStore interface {
	Revoke(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error
	LoadActive(ctx context.Context, now time.Time) (map[string]time.Time, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevocationCache answers "is this token id revoked" from memory on the hot
// path. Writes go through to the store first so revocations survive restarts;
// Warm reloads the cache from the store on startup.
type RevocationCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti -> token expiry
	store   RevocationStore
	logger  *slog.Logger
}

func NewRevocationCache(store RevocationStore, logger *slog.Logger) *RevocationCache {
	return &RevocationCache{
		entries: make(map[string]time.Time),
		store:   store,
		logger:  logger,
	}
}

// Warm loads all unexpired revocations from the store
func (c *RevocationCache) Warm(ctx context.Context, now time.Time) error {
	active, err := c.store.LoadActive(ctx, now)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = active
	c.mu.Unlock()

	c.logger.Info("revocation cache warmed", slog.Int("entries", len(active)))
	return nil
}

// Revoke blacklists a token id until its own expiry. The store write happens
// first; the cache only reflects persisted revocations.
func (c *RevocationCache) Revoke(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error {
	if err := c.store.Revoke(ctx, jti, userID, reason, expiresAt); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[jti] = expiresAt
	c.mu.Unlock()
	return nil
}

// IsRevoked reports whether the token id is on the blacklist. Entries past
// the token's own expiry no longer count; the token fails validation anyway.
func (c *RevocationCache) IsRevoked(jti string, now time.Time) bool {
	c.mu.RLock()
	expiresAt, ok := c.entries[jti]
	c.mu.RUnlock()

	return ok && now.Before(expiresAt)
}

// Evict drops cache entries for tokens past their expiry and deletes the
// matching store rows. Called periodically by the background sweeper.
func (c *RevocationCache) Evict(ctx context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	for jti, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, jti)
		}
	}
	c.mu.Unlock()

	return c.store.DeleteExpired(ctx, now)
}
