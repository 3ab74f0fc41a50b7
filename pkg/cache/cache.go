// Package cache memoizes render results per session.
//
// Keys are digests of the image identity, the canonical parameter string and
// the render variant, so semantically equal parameter sets always share an
// entry and a new image never collides with stale results.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/pkg/types"
)

// Key identifies one cached render
type Key string

// NewKey derives the key for a render of the image identified by identity.
// Annotated previews are keyed apart from plain previews.
func NewKey(identity string, p types.Params, variant types.Variant, annotated bool) Key {
	d := xxhash.New()
	_, _ = d.WriteString(identity)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(p.Canonical())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(variant))
	if annotated && variant == types.VariantPreview {
		_, _ = d.WriteString("+annotated")
	}
	return Key(strconv.FormatUint(d.Sum64(), 16))
}

// ComputeFunc produces the result for a missing key
type ComputeFunc func(ctx context.Context) (*types.RenderResult, error)

// Config configures a Cache
type Config struct {
	// MaxEntries bounds the cache; the oldest entries are evicted first.
	// Zero means unbounded.
	MaxEntries int
}

// Cache is a concurrency-safe render memo. Failed computations are never
// stored, and concurrent requests for one key share a single computation.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*types.RenderResult
	order   []Key
	max     int

	group  singleflight.Group
	logger *slog.Logger
}

// New creates an unbounded cache
func New(logger *slog.Logger) *Cache {
	return NewWithConfig(Config{}, logger)
}

// NewWithConfig creates a cache with the given bounds
func NewWithConfig(cfg Config, logger *slog.Logger) *Cache {
	return &Cache{
		entries: make(map[Key]*types.RenderResult),
		max:     cfg.MaxEntries,
		logger:  logging.Or(logger),
	}
}

// Get returns the stored result for key
func (c *Cache) Get(key Key) (*types.RenderResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	return res, ok
}

// GetOrCompute returns the stored result for key, or runs compute once,
// stores its result and returns it. hit reports whether compute was skipped.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (res *types.RenderResult, hit bool, err error) {
	if res, ok := c.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return res, true, nil
	}

	v, err, shared := c.group.Do(string(key), func() (interface{}, error) {
		// another caller may have stored it between Get and Do
		if res, ok := c.Get(key); ok {
			return res, nil
		}
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, res)
		return res, nil
	})

	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false, err
	}
	if shared {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return v.(*types.RenderResult), true, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return v.(*types.RenderResult), false, nil
}

func (c *Cache) store(key Key, res *types.RenderResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = res
	c.order = append(c.order, key)

	for c.max > 0 && len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		metrics.CacheEvictionsTotal.Inc()
		c.logger.Debug("evicted render", "key", oldest)
	}
}

// Len returns the number of stored results
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every stored result
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*types.RenderResult)
	c.order = nil
}
