package reactive

import "sync"

// Computed is a derivation memoized against the engine version. The cached
// value is reused until any observed write happens.
type Computed struct {
	eng *Engine
	fn  func() any

	mu        sync.Mutex
	valid     bool
	version   int64
	value     any
	destroyed bool
}

// Computed wraps fn as a memoized derivation.
func (e *Engine) Computed(fn func() any) *Computed {
	return &Computed{eng: e, fn: fn}
}

// Get returns the memoized value, recomputing it if a write happened since
// the last evaluation. fn runs without the lock held so derivations may read
// other computeds.
func (c *Computed) Get() any {
	v := c.eng.Version()

	c.mu.Lock()
	if c.valid && c.version == v {
		val := c.value
		c.mu.Unlock()
		return val
	}
	destroyed := c.destroyed
	c.mu.Unlock()

	val := c.fn()
	if destroyed {
		return val
	}

	c.mu.Lock()
	if !c.destroyed {
		c.value = val
		c.version = v
		c.valid = true
	}
	c.mu.Unlock()
	return val
}

// Destroy drops the cached value. A destroyed computed still evaluates on
// Get but never caches.
func (c *Computed) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.valid = false
	c.value = nil
}

// Destroyed reports whether Destroy was called.
func (c *Computed) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
