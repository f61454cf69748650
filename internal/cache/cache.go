// Package cache implements the process-level property cache described in
// the design notes: a per-API-instance memoization table with explicit
// invalidation keyed by property name, used to elide repeated store
// round-trips for values like active_branch, branches, repo_id, repo_name,
// and fs_repo_root.
package cache

import "sync"

// Cache is a small keyed memoization table. It is safe for concurrent use,
// though ipvc-go's single-threaded-per-operation model (see the
// concurrency design) never actually contends on it.
type Cache struct {
	mu     sync.Mutex
	values map[string]any
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{values: make(map[string]any)}
}

// Get returns the cached value for key and whether it was present.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// GetOrCompute returns the cached value for key, computing and storing it
// via compute if absent.
func (c *Cache) GetOrCompute(key string, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	if v, ok := c.values[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
	return v, nil
}

// Set stores value under key unconditionally.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Invalidate removes the named keys from the cache. With no keys, the
// entire cache is cleared.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.values = make(map[string]any)
		return
	}
	for _, k := range keys {
		delete(c.values, k)
	}
}
