// Package cache memoizes per-entity metadata, such as entity structures, keyed
// by case-insensitive entity name.
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/thetechidea/beepdatasources/pkg/errors"
	"github.com/thetechidea/beepdatasources/pkg/metrics"
)

// Loader produces the value for name. refresh is true when the caller asked
// to bypass the cached entry.
type Loader[T any] func(ctx context.Context, name string, refresh bool) (T, error)

// Cache is safe for concurrent use. Concurrent misses on the same key share a
// single loader call; refreshes always call the loader.
type Cache[T any] struct {
	name   string
	loader Loader[T]
	store  *gocache.Cache
	group  singleflight.Group
}

// New returns a cache backed by loader. A ttl of 0 keeps entries until they
// are invalidated.
func New[T any](loader Loader[T], ttl time.Duration) *Cache[T] {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = 2 * ttl
	} else {
		ttl = gocache.NoExpiration
	}
	return &Cache[T]{
		name:   "structure",
		loader: loader,
		store:  gocache.New(ttl, cleanup),
	}
}

// WithName sets the cache label used in metrics.
func (c *Cache[T]) WithName(name string) *Cache[T] {
	c.name = name
	return c
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the entry for name. With refresh the loader is always invoked
// and its result replaces the entry. Loader errors are returned and nothing
// is stored.
func (c *Cache[T]) Get(ctx context.Context, name string, refresh bool) (T, error) {
	var zero T
	k := key(name)
	if k == "" {
		return zero, errors.New(errors.ErrorTypeValidation, "entity name is empty")
	}

	if refresh {
		v, err := c.loader(ctx, name, true)
		if err != nil {
			metrics.CacheRequests.WithLabelValues(c.name, metrics.CacheError).Inc()
			return zero, err
		}
		c.store.SetDefault(k, v)
		metrics.CacheRequests.WithLabelValues(c.name, metrics.CacheRefresh).Inc()
		return v, nil
	}

	if v, ok := c.store.Get(k); ok {
		metrics.CacheRequests.WithLabelValues(c.name, metrics.CacheHit).Inc()
		return v.(T), nil
	}

	res, err, _ := c.group.Do(k, func() (interface{}, error) {
		if v, ok := c.store.Get(k); ok {
			return v, nil
		}
		v, err := c.loader(ctx, name, false)
		if err != nil {
			return nil, err
		}
		// a refresh that finished while loading wins
		if err := c.store.Add(k, v, gocache.DefaultExpiration); err != nil {
			if cur, ok := c.store.Get(k); ok {
				return cur, nil
			}
		}
		return v, nil
	})
	if err != nil {
		metrics.CacheRequests.WithLabelValues(c.name, metrics.CacheError).Inc()
		return zero, err
	}
	metrics.CacheRequests.WithLabelValues(c.name, metrics.CacheMiss).Inc()
	return res.(T), nil
}

// Peek returns the cached entry for name without loading.
func (c *Cache[T]) Peek(name string) (T, bool) {
	if v, ok := c.store.Get(key(name)); ok {
		return v.(T), true
	}
	var zero T
	return zero, false
}

// Invalidate drops the entry for name.
func (c *Cache[T]) Invalidate(name string) {
	c.store.Delete(key(name))
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.store.Flush()
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache[T]) Len() int {
	return c.store.ItemCount()
}
