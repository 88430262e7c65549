package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheSize bounds the number of profiles kept in memory.
	DefaultCacheSize = 1024

	// DefaultCacheTTL is how long a fetched profile is served from memory.
	DefaultCacheTTL = 5 * time.Minute
)

// Cache keeps profiles by session key.
type Cache interface {
	Get(key string) (*Profile, bool)
	Add(key string, p *Profile)
	Remove(key string)
}

// MemoryCache is a size bounded in-memory Cache whose entries expire.
type MemoryCache struct {
	lru *expirable.LRU[string, *Profile]
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache holding at most size profiles for ttl
// each. Non-positive values fall back to DefaultCacheSize and DefaultCacheTTL.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *Profile](size, nil, ttl)}
}

// Get returns the unexpired profile stored under key.
func (c *MemoryCache) Get(key string) (*Profile, bool) { return c.lru.Get(key) }

// Add stores p under key, evicting the oldest entry when full.
func (c *MemoryCache) Add(key string, p *Profile) { c.lru.Add(key, p) }

// Remove drops the profile stored under key, if any.
func (c *MemoryCache) Remove(key string) { c.lru.Remove(key) }

// Len returns the number of unexpired profiles.
func (c *MemoryCache) Len() int { return c.lru.Len() }
