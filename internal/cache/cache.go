package cache

import (
	"sync"
	"time"
)

// Cache memoizes loader results per key for ttl.
type Cache[K comparable, V any] struct {
	m      sync.Map
	ttl    time.Duration
	loader func(key K) V
}

type entry[V any] struct {
	mx    sync.Mutex
	value V
	ts    time.Time
}

func NewWithTTL[K comparable, V any](ttl time.Duration, loader func(key K) V) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:    ttl,
		loader: loader,
	}
}

// Load returns the cached value, calling loader once per key when it is missing or stale.
func (c *Cache[K, V]) Load(key K) V {
	return c.LoadWith(key, func() V { return c.loader(key) })
}

// LoadWith is Load with a loader for this call only.
func (c *Cache[K, V]) LoadWith(key K, load func() V) V {
	v, _ := c.m.LoadOrStore(key, new(entry[V]))
	e := v.(*entry[V])

	e.mx.Lock()
	defer e.mx.Unlock()

	if e.ts.IsZero() || time.Since(e.ts) > c.ttl {
		e.value = load()
		e.ts = time.Now()
	}

	return e.value
}

// Get returns the value if it is present and fresh. It never calls a loader.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	v, ok := c.m.Load(key)
	if !ok {
		return zero, false
	}

	e := v.(*entry[V])

	e.mx.Lock()
	defer e.mx.Unlock()

	if e.ts.IsZero() || time.Since(e.ts) > c.ttl {
		return zero, false
	}

	return e.value, true
}

func (c *Cache[K, V]) Store(key K, value V) {
	v, _ := c.m.LoadOrStore(key, new(entry[V]))
	e := v.(*entry[V])

	e.mx.Lock()
	e.value = value
	e.ts = time.Now()
	e.mx.Unlock()
}

func (c *Cache[K, V]) Forget(key K) {
	c.m.Delete(key)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.m.Range(func(key, _ any) bool {
		c.m.Delete(key)
		return true
	})
}

// Clean drops stale entries that are not being loaded right now.
func (c *Cache[K, V]) Clean() {
	c.m.Range(func(key, value any) bool {
		e := value.(*entry[V])

		if !e.mx.TryLock() {
			return true
		}

		defer e.mx.Unlock()

		if time.Since(e.ts) > c.ttl {
			c.m.Delete(key)
		}

		return true
	})
}

func (c *Cache[K, V]) Len() int {
	n := 0

	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
