package rules

import (
	"sync"
	"time"
)

// InMemoryRulesCache is a RulesCache guarded by a RWMutex.
type InMemoryRulesCache struct {
	rules    []*Rule
	cachedAt time.Time
	ttl      time.Duration
	valid    bool
	now      func() time.Time
	mu       sync.RWMutex
}

// NewInMemoryRulesCache creates an empty cache.
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{
		ttl: config.TTL,
		now: time.Now,
	}
}

func (c *InMemoryRulesCache) fresh() bool {
	if !c.valid {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(c.cachedAt) <= c.ttl
}

// Get returns a copy of the cached slice so callers cannot reorder it.
func (c *InMemoryRulesCache) Get() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c *InMemoryRulesCache) Set(rules []*Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules = make([]*Rule, len(rules))
	copy(c.rules, rules)
	c.cachedAt = c.now()
	c.valid = true
}

func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.rules = nil
}

func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fresh()
}
