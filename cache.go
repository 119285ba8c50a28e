package captionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Cache durations used by the caption service endpoints.
const (
	CacheShort    = 1 * time.Minute
	CacheMedium   = 5 * time.Minute
	CacheLong     = 30 * time.Minute
	CacheVeryLong = 1 * time.Hour
)

// Store holds cached GET responses. Freshness is decided per read: Get
// returns a value only if it was stored no longer than maxAge ago, and
// evicts it otherwise. Writes replace the whole value.
type Store interface {
	Get(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Clear removes every key containing pattern, or everything when pattern is empty.
	Clear(ctx context.Context, pattern string) error
}

// CacheEntry represents a cached response
type CacheEntry struct {
	Key      string
	Value    json.RawMessage
	StoredAt time.Time
}

// InMemoryCache is the default Store: a sharded map owned by one client.
type InMemoryCache struct {
	shards    []*cacheShard
	numShards int
	now       func() time.Time
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

var _ Store = (*InMemoryCache)(nil)

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	numShards := 16
	shards := make([]*cacheShard, numShards)
	for i := range shards {
		shards[i] = &cacheShard{
			store: make(map[string]*CacheEntry),
		}
	}
	return &InMemoryCache{
		shards:    shards,
		numShards: numShards,
		now:       time.Now,
	}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(c.numShards)]
}

// Get returns a copy of the value stored under key if it is at most maxAge old.
func (c *InMemoryCache) Get(_ context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}

	if c.now().Sub(entry.StoredAt) > maxAge {
		shard.mu.Lock()
		if shard.store[key] == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, false, nil
	}

	return bytes.Clone(entry.Value), true, nil
}

// Set stores value under key, stamped with the current time.
func (c *InMemoryCache) Set(_ context.Context, key string, value json.RawMessage) error {
	entry := &CacheEntry{
		Key:      key,
		Value:    bytes.Clone(value),
		StoredAt: c.now(),
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	shard.store[key] = entry
	shard.mu.Unlock()
	return nil
}

// Clear removes every key containing pattern, or all entries if pattern is empty.
func (c *InMemoryCache) Clear(_ context.Context, pattern string) error {
	for _, shard := range c.shards {
		shard.mu.Lock()
		if pattern == "" {
			shard.store = make(map[string]*CacheEntry)
		} else {
			for key := range shard.store {
				if strings.Contains(key, pattern) {
					delete(shard.store, key)
				}
			}
		}
		shard.mu.Unlock()
	}
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// KeyOptions is the cache-relevant subset of a request.
type KeyOptions struct {
	Method  string
	Params  Params
	Headers map[string]string
}

// CacheKey derives the key used for both caching and request coalescing.
// It is the URL followed by a stable JSON rendering of opts; freshness,
// timeout and retry settings are deliberately left out.
func CacheKey(rawURL string, opts KeyOptions) string {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	payload := struct {
		Method  string            `json:"method"`
		Params  string            `json:"params,omitempty"`
		Headers map[string]string `json:"headers,omitempty"`
	}{
		Method:  method,
		Params:  encodeParams(opts.Params),
		Headers: opts.Headers,
	}

	// Marshal cannot fail for strings and a string map.
	encoded, _ := json.Marshal(payload)

	var buf []byte
	buf = append(buf, rawURL...)
	buf = append(buf, '_')
	buf = append(buf, encoded...)
	return string(buf)
}

// ClearCache drops cached responses whose key contains pattern, or the whole
// cache when pattern is empty. In-flight requests are not affected.
func (c *Client) ClearCache(ctx context.Context, pattern string) error {
	if err := c.store.Clear(ctx, pattern); err != nil {
		return err
	}
	c.recordCacheSize()
	if c.debugEnabled(c.debug.LogCache) {
		c.logger.Debug("Cache cleared", "pattern", pattern)
	}
	return nil
}

func (c *Client) cacheLookup(ctx context.Context, d *requestDescriptor, requestID string) (json.RawMessage, bool) {
	value, found, err := c.store.Get(ctx, d.key, d.config.CacheMaxAge)
	if err != nil {
		c.logger.Warn("Cache read failed", "requestID", requestID, "cacheKey", d.key, "error", err.Error())
		return nil, false
	}

	if found {
		c.metrics.RecordCacheHit(d.method, d.endpoint)
		if c.debugEnabled(c.debug.LogCache) {
			c.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", d.key)
		}
		return value, true
	}

	c.metrics.RecordCacheMiss(d.method, d.endpoint)
	if c.debugEnabled(c.debug.LogCache) {
		c.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", d.key)
	}
	return nil, false
}

func (c *Client) cacheStore(ctx context.Context, d *requestDescriptor, value json.RawMessage, requestID string) {
	if err := c.store.Set(ctx, d.key, value); err != nil {
		c.logger.Warn("Cache write failed", "requestID", requestID, "cacheKey", d.key, "error", err.Error())
		return
	}
	c.recordCacheSize()
	if c.debugEnabled(c.debug.LogCache) {
		c.logger.Debug("Response cached", "requestID", requestID, "cacheKey", d.key, "maxAge", d.config.CacheMaxAge)
	}
}

func (c *Client) recordCacheSize() {
	if c.metrics == nil {
		return
	}
	if sized, ok := c.store.(interface{ Len() int }); ok {
		c.metrics.RecordCacheSize("default", sized.Len())
	}
}
