// Package cache stores rendered graph artifacts keyed by content hash, so
// repeated visualizations of an unchanged graph skip the Graphviz round trip.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Cache is the storage contract for rendered artifacts.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, artifact []byte) error
}

// InMemoryCache provides a simple thread-safe in-memory artifact cache.
type InMemoryCache struct {
	store map[string]cacheItem
	mutex sync.RWMutex
	ttl   time.Duration
}

type cacheItem struct {
	Artifact   []byte `json:"artifact"`
	Expiration int64  `json:"expiration"`
}

// NewInMemoryCache creates a new in-memory cache with a default TTL.
func NewInMemoryCache(defaultTTL time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		store: make(map[string]cacheItem),
		ttl:   defaultTTL,
	}
	// Background cleanup of expired artifacts
	go c.cleanupLoop(10 * time.Minute)
	return c
}

// Get retrieves an artifact from the cache.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	// Check context cancellation first
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("artifact not cached", nil))
	}

	if time.Now().UnixNano() > item.Expiration {
		// Expired (lazy cleanup)
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cached artifact expired", nil))
	}

	return item.Artifact, nil
}

// Set adds or updates an artifact in the cache.
func (c *InMemoryCache) Set(ctx context.Context, key string, artifact []byte) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store[key] = cacheItem{
		Artifact:   artifact,
		Expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	return nil
}

// cleanupLoop periodically removes expired artifacts.
func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now().UnixNano()
		for key, item := range c.store {
			if now > item.Expiration {
				delete(c.store, key)
			}
		}
		c.mutex.Unlock()
	}
}
