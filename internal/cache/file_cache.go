package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/charmbracelet/log"
)

// FileCache provides a file-backed persistent artifact cache, so rendered
// output survives process restarts.
type FileCache struct {
	store    map[string]cacheItem
	mutex    sync.RWMutex
	ttl      time.Duration
	filePath string
	logger   *log.Logger
}

// NewFileCache creates a persistent cache backed by the file at filePath.
// logger may be nil.
func NewFileCache(defaultTTL time.Duration, filePath string, logger *log.Logger) *FileCache {
	c := &FileCache{
		store:    make(map[string]cacheItem),
		ttl:      defaultTTL,
		filePath: filePath,
		logger:   logger,
	}
	c.loadFromFile()
	go c.cleanupLoop(10 * time.Minute)
	return c
}

// loadFromFile loads cached artifacts from the backing file.
func (c *FileCache) loadFromFile() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	file, err := os.Open(c.filePath)
	if err != nil {
		return
	}
	defer file.Close()
	_ = json.NewDecoder(file).Decode(&c.store)
}

// saveToFile writes the store to the backing file. Callers hold the lock.
func (c *FileCache) saveToFile() {
	file, err := os.Create(c.filePath)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("cache write failed", "path", c.filePath, "err", err)
		}
		return
	}
	defer file.Close()
	_ = json.NewEncoder(file).Encode(c.store)
}

// Get retrieves an artifact from the cache.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	item, found := c.store[key]
	c.mutex.RUnlock()

	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("artifact not cached", nil))
	}
	if time.Now().UnixNano() > item.Expiration {
		if c.logger != nil {
			c.logger.Debug("cached artifact expired", "key", key)
		}
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cached artifact expired", nil))
	}
	return item.Artifact, nil
}

// Set adds or updates an artifact and persists the store.
func (c *FileCache) Set(ctx context.Context, key string, artifact []byte) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.store[key] = cacheItem{
		Artifact:   artifact,
		Expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.saveToFile()
	return nil
}

// cleanupLoop periodically removes expired artifacts and saves the file.
func (c *FileCache) cleanupLoop(interval time.Duration) {
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
		c.saveToFile()
		c.mutex.Unlock()
	}
}
