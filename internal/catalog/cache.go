package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/logger"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// TTL bounds how long an entry is served. Zero keeps entries until they
	// are invalidated.
	TTL time.Duration

	Logger  *logger.Logger
	Metrics *CacheMetrics
}

// CacheStats is a point-in-time view of cache activity.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// CacheMetrics holds the prometheus collectors updated by a Cache.
type CacheMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations prometheus.Counter
}

// NewCacheMetrics creates the cache collectors and registers them on reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d1meta",
			Subsystem: "catalog_cache",
			Name:      "hits_total",
			Help:      "Catalog lookups served from the cache.",
		}, []string{"op"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d1meta",
			Subsystem: "catalog_cache",
			Name:      "misses_total",
			Help:      "Catalog lookups that went to the database.",
		}, []string{"op"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "d1meta",
			Subsystem: "catalog_cache",
			Name:      "invalidations_total",
			Help:      "Explicit cache invalidations.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.invalidations)
	return m
}

type cacheKey struct {
	op     string
	schema string
	table  string
}

// tableKey folds table names the way the engine compares identifiers.
func tableKey(table string) string {
	return strings.ToLower(table)
}

func (k cacheKey) String() string {
	return k.op + "\x00" + k.schema + "\x00" + k.table
}

type cacheEntry struct {
	value   any
	expires time.Time // zero means no expiry
}

type bypassKey struct{}

// WithBypass marks ctx so that Cache lookups skip stored entries. The fresh
// result replaces whatever was cached.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Cache memoizes a Source per (operation, schema, table).
// Concurrent misses for one key share a single round trip. Failed lookups
// are never stored. Every result handed out is a copy.
type Cache struct {
	src     Source
	ttl     time.Duration
	log     *logger.Logger
	metrics *CacheMetrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	gen     uint64 // bumped by every invalidation

	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Source = (*Cache)(nil)

// NewCache wraps src.
func NewCache(src Source, opts CacheOptions) *Cache {
	log := logger.Nop()
	if opts.Logger != nil {
		log = opts.Logger.Component("catalog_cache")
	}
	return &Cache{
		src:     src,
		ttl:     opts.TTL,
		log:     log,
		metrics: opts.Metrics,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *Cache) ListTables(ctx context.Context) ([]string, error) {
	return load(c, ctx, OpListTables, "", c.src.ListTables, cloneStrings)
}

func (c *Cache) ListViews(ctx context.Context) ([]string, error) {
	return load(c, ctx, OpListViews, "", c.src.ListViews, cloneStrings)
}

func (c *Cache) TableInfo(ctx context.Context, table string) ([]ColumnRow, error) {
	return load(c, ctx, OpTableInfo, table, func(ctx context.Context) ([]ColumnRow, error) {
		return c.src.TableInfo(ctx, table)
	}, cloneColumnRows)
}

func (c *Cache) ForeignKeyList(ctx context.Context, table string) ([]ForeignKeyRow, error) {
	return load(c, ctx, OpForeignKeyList, table, func(ctx context.Context) ([]ForeignKeyRow, error) {
		return c.src.ForeignKeyList(ctx, table)
	}, cloneSlice[ForeignKeyRow])
}

func (c *Cache) IndexList(ctx context.Context, table string) ([]IndexRow, error) {
	return load(c, ctx, OpIndexList, table, func(ctx context.Context) ([]IndexRow, error) {
		return c.src.IndexList(ctx, table)
	}, cloneIndexRows)
}

func (c *Cache) TableExists(ctx context.Context, table string) (bool, error) {
	return load(c, ctx, OpTableExists, table, func(ctx context.Context) (bool, error) {
		return c.src.TableExists(ctx, table)
	}, func(b bool) bool { return b })
}

// Invalidate drops every entry for table, matched case-insensitively.
// Catalog-wide listings are dropped too, since the table may have been
// created or removed.
func (c *Cache) Invalidate(table string) {
	key := tableKey(table)
	c.mu.Lock()
	for k := range c.entries {
		if k.table == key || k.table == "" {
			delete(c.entries, k)
		}
	}
	c.gen++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.invalidations.Inc()
	}
	c.log.DebugWith("cache invalidated", map[string]any{"table": table})
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	clear(c.entries)
	c.gen++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.invalidations.Inc()
	}
	c.log.Debug("cache cleared")
}

// Stats reports hit and miss counters and the number of live entries.
func (c *Cache) Stats() CacheStats {
	now := c.now()
	n := 0
	c.mu.RLock()
	for _, e := range c.entries {
		if !e.expired(now) {
			n++
		}
	}
	c.mu.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// lookup returns the live entry for key. An expired entry is removed.
func (c *Cache) lookup(key cacheKey) (any, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expired(now) {
		return e.value, true
	}

	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.expired(now) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil, false
}

// store saves value unless an invalidation happened after the fetch began.
func (c *Cache) store(key cacheKey, value any, gen uint64) {
	e := cacheEntry{value: value}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.entries[key] = e
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Cache) hit(op string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.hits.WithLabelValues(op).Inc()
	}
}

func (c *Cache) miss(op string) {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.misses.WithLabelValues(op).Inc()
	}
}

// load serves key from the cache or fetches it. Concurrent misses share one
// fetch, which runs detached from any single caller's cancellation; each
// caller still stops waiting when its own ctx is done.
func load[T any](c *Cache, ctx context.Context, op, table string, fetch func(context.Context) (T, error), clone func(T) T) (T, error) {
	var zero T
	key := cacheKey{op: op, schema: MainSchema, table: tableKey(table)}
	sfKey := key.String()

	bypass := bypassed(ctx)
	if bypass {
		c.group.Forget(sfKey)
	} else if v, ok := c.lookup(key); ok {
		c.hit(op)
		return clone(v.(T)), nil
	}
	c.miss(op)

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sfKey, func() (any, error) {
		// a flight that just finished may have stored the entry
		if !bypass {
			if v, ok := c.lookup(key); ok {
				return v, nil
			}
		}
		gen := c.generation()
		val, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, val, gen)
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, errs.Query(op, table, errs.Wrap(errs.ErrKindTimeout, "caller gave up waiting", ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.log.DebugWith("cache miss shared", map[string]any{"op": op, "table": table})
		}
		return clone(res.Val.(T)), nil
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}

func cloneStrings(s []string) []string { return cloneSlice(s) }

func cloneColumnRows(rows []ColumnRow) []ColumnRow {
	out := cloneSlice(rows)
	for i := range out {
		out[i].DeclaredType = clonePtr(out[i].DeclaredType)
		out[i].Default = clonePtr(out[i].Default)
	}
	return out
}

func cloneIndexRows(rows []IndexRow) []IndexRow {
	out := cloneSlice(rows)
	for i := range out {
		out[i].SQL = clonePtr(out[i].SQL)
	}
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
