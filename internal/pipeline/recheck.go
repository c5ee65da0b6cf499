package pipeline

import (
	"sync"
	"time"

	"github.com/nao1215/phishguard/internal/model"
)

// RecheckCache remembers when URLs were last found benign, keyed by URL
// hash. It is safe for concurrent use. A zero interval disables it.
type RecheckCache struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewRecheckCache creates a cache that suppresses re-evaluation of a benign
// URL for interval.
func NewRecheckCache(interval time.Duration) *RecheckCache {
	return &RecheckCache{
		interval: interval,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

// Enabled reports whether the cache suppresses anything.
func (c *RecheckCache) Enabled() bool {
	return c != nil && c.interval > 0
}

// Fresh reports whether url was found benign less than the interval ago.
func (c *RecheckCache) Fresh(url string) bool {
	if !c.Enabled() {
		return false
	}
	key := model.HashURL(url)

	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	if !ok {
		return false
	}
	if c.now().Sub(at) >= c.interval {
		delete(c.seen, key)
		return false
	}
	return true
}

// MarkBenign records a benign verdict for url.
func (c *RecheckCache) MarkBenign(url string) {
	if !c.Enabled() {
		return
	}
	key := model.HashURL(url)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = c.now()
}

// Prune drops expired entries and returns how many remain.
func (c *RecheckCache) Prune() int {
	if !c.Enabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) >= c.interval {
			delete(c.seen, k)
		}
	}
	return len(c.seen)
}
