package query

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Polling intervals of the near real time views.
const (
	ChatInterval                = 5 * time.Second
	UnreadMessagesInterval      = 15 * time.Second
	UnreadNotificationsInterval = 30 * time.Second
)

// GCTime is how long an entry may go unused before a sweep drops it.
// A cache whose stale time is longer keeps entries for the stale time instead.
const GCTime = 5 * time.Minute

// ErrDisabled is returned by Fetch when the query is not enabled yet (missing inputs).
var ErrDisabled = errors.New("query disabled")

// Observer is notified of cache hits and misses, keyed by the unscoped key.
type Observer interface {
	CacheHit(key Key)
	CacheMiss(key Key)
}

type (
	entry struct {
		key       Key
		data      interface{}
		fetchedAt time.Time
		usedAt    time.Time
		stale     bool
	}

	flight struct {
		key   Key
		dirty bool // invalidated while in flight
	}

	// Cache is the shared remote query cache. Use Scope to get a per-user Client.
	Cache struct {
		mu        sync.Mutex
		entries   map[string]*entry
		flights   map[string]*flight
		group     singleflight.Group
		staleTime time.Duration
		gcTime    time.Duration
		swept     time.Time
		observer  Observer
		now       func() time.Time
	}

	// Client is a namespaced view of the Cache.
	Client struct {
		cache *Cache
		ns    string
	}
)

func NewCache(staleTime time.Duration, observer ...Observer) *Cache {
	c := &Cache{
		entries:   make(map[string]*entry),
		flights:   make(map[string]*flight),
		staleTime: staleTime,
		gcTime:    max(GCTime, staleTime),
		now:       time.Now,
	}
	if len(observer) > 0 {
		c.observer = observer[0]
	}
	return c
}

// Scope returns a Client whose keys live under ns.
func (c *Cache) Scope(ns string) *Client {
	return &Client{cache: c, ns: ns}
}

// Invalidate marks every entry whose key starts with one of the given keys as stale.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, prefix := range keys {
		for _, e := range c.entries {
			if e.key.HasPrefix(prefix) {
				e.stale = true
			}
		}
		c.detachFlights(prefix)
	}
}

// Remove drops every entry under the given keys.
func (c *Cache) Remove(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, prefix := range keys {
		for ks, e := range c.entries {
			if e.key.HasPrefix(prefix) {
				delete(c.entries, ks)
			}
		}
		c.detachFlights(prefix)
	}
}

// detachFlights marks in-flight fetches under prefix as dirty and forgets them,
// so later callers start a new fetch instead of joining one that predates the change.
// Callers hold mu.
func (c *Cache) detachFlights(prefix Key) {
	for ks, f := range c.flights {
		if f.key.HasPrefix(prefix) {
			f.dirty = true
			c.group.Forget(ks)
			delete(c.flights, ks)
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key Key, staleTime time.Duration) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || e.stale {
		return nil, false
	}
	now := c.now()
	if staleTime >= 0 && now.Sub(e.fetchedAt) > staleTime {
		return nil, false
	}
	e.usedAt = now
	return e.data, true
}

func (c *Cache) fetch(ctx context.Context, key Key, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ks := key.String()
	data, err, _ := c.group.Do(ks, func() (interface{}, error) {
		f := &flight{key: key}
		c.mu.Lock()
		c.flights[ks] = f
		c.mu.Unlock()

		data, err := fn(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.flights[ks] == f {
			delete(c.flights, ks)
		}
		if err != nil {
			return nil, err
		}
		// a dirty flight's result is handed to its callers but never cached
		if !f.dirty {
			now := c.now()
			c.entries[ks] = &entry{key: key, data: data, fetchedAt: now, usedAt: now}
			c.sweep(now)
		}
		return data, nil
	})
	return data, err
}

// sweep drops entries unused for gcTime. It runs at most once per gcTime. Callers hold mu.
func (c *Cache) sweep(now time.Time) {
	if now.Sub(c.swept) < c.gcTime {
		return
	}
	c.swept = now
	for ks, e := range c.entries {
		if now.Sub(e.usedAt) > c.gcTime {
			delete(c.entries, ks)
		}
	}
}

func (c *Cache) observe(key Key, hit bool) {
	if c.observer == nil {
		return
	}
	if hit {
		c.observer.CacheHit(key)
	} else {
		c.observer.CacheMiss(key)
	}
}

func (cl *Client) scoped(key Key) Key {
	if cl.ns == "" {
		return key
	}
	return key.with(cl.ns)
}

// Invalidate marks the scoped keys as stale.
func (cl *Client) Invalidate(keys ...Key) {
	scoped := make([]Key, len(keys))
	for i, k := range keys {
		scoped[i] = cl.scoped(k)
	}
	cl.cache.Invalidate(scoped...)
}

// Reset drops every entry of this scope (on logout).
func (cl *Client) Reset() {
	if cl.ns == "" {
		cl.cache.Remove(K())
		return
	}
	cl.cache.Remove(K(cl.ns))
}

type options struct {
	staleTime *time.Duration
	enabled   bool
	force     bool
}

type Option func(*options)

// StaleTime overrides the cache default. A negative value never goes stale on its own.
func StaleTime(d time.Duration) Option {
	return func(o *options) { o.staleTime = &d }
}

// Enabled gates the query on its inputs being present.
func Enabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// Refetch bypasses the cached data (still coalesced with in-flight fetches).
func Refetch() Option {
	return func(o *options) { o.force = true }
}

// Fetch returns fresh cached data for key or performs one shared fetch.
func Fetch[T any](ctx context.Context, cl *Client, key Key, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	o := options{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.enabled {
		return zero, ErrDisabled
	}

	staleTime := cl.cache.staleTime
	if o.staleTime != nil {
		staleTime = *o.staleTime
	}
	full := cl.scoped(key)

	if !o.force {
		if data, ok := cl.cache.lookup(full, staleTime); ok {
			if v, ok := data.(T); ok {
				cl.cache.observe(key, true)
				return v, nil
			}
		}
	}
	cl.cache.observe(key, false)

	data, err := cl.cache.fetch(ctx, full, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, errors.Errorf("query %v: cached %T", key, data)
	}
	return v, nil
}

// Peek returns cached data for key without fetching, fresh or not.
func Peek[T any](cl *Client, key Key) (T, bool) {
	var zero T
	cl.cache.mu.Lock()
	defer cl.cache.mu.Unlock()
	e, ok := cl.cache.entries[cl.scoped(key).String()]
	if !ok {
		return zero, false
	}
	v, ok := e.data.(T)
	return v, ok
}
