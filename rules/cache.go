package rules

import "time"

// RulesCache holds the active rule list between evaluations so that a
// prediction does not walk the store on every request.
type RulesCache interface {
	// Get returns the cached rules, or nil on a miss or after expiry.
	Get() []*Rule
	Set(rules []*Rule)
	// Invalidate drops the cached list; the next Get misses.
	Invalidate()
	IsValid() bool
}

// CacheConfig controls cache expiry.
type CacheConfig struct {
	// TTL of the cached list. Zero keeps it until the next rule mutation.
	TTL time.Duration
}

// DefaultCacheConfig invalidates only on rule mutations.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
