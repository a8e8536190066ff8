package service

import (
	"hash/maphash"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sakif/social-host/internal/model"
)

// maxCachedContent bounds the size of a single cached file, so a full cache
// cannot hold CacheSize copies of MaxFileSize bytes.
const maxCachedContent = 64 * 1024

// generationStripes is the number of invalidation counters, a power of two.
// Nicknames hash onto a stripe; two nicknames sharing one only cost a
// skipped fill.
const generationStripes = 256

// CacheService is an expiring LRU of account snapshots keyed by nickname.
//
// It only serves the public read path. Every write path calls Invalidate,
// and entries expire after the configured TTL.
//
// A read that missed fills the cache with what it loaded from the store.
// If a write committed and invalidated in between, that snapshot is already
// stale, so fills are conditional:
//
//	gen := cache.Generation(nick)   // before reading the store
//	a := repo.GetByNickname(nick)
//	cache.SetIfCurrent(a, gen)      // dropped if Invalidate ran since
//
// Invalidate bumps the nickname's generation and removes the entry under the
// same lock SetIfCurrent checks it under.
type CacheService struct {
	mu    sync.Mutex
	seed  maphash.Seed
	gens  [generationStripes]uint64
	cache *expirable.LRU[string, model.Account] // nil when caching is off
}

// NewCacheService creates a cache holding at most maxSize accounts for ttl.
// A maxSize of zero turns caching off; Get always misses.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	c := &CacheService{seed: maphash.MakeSeed()}
	if maxSize > 0 {
		c.cache = expirable.NewLRU[string, model.Account](maxSize, nil, ttl)
	}
	return c
}

func (c *CacheService) Get(nickname string) (model.Account, bool) {
	if c.cache != nil {
		if a, ok := c.cache.Get(nickname); ok {
			cacheHitsTotal.Inc()
			return a, true
		}
	}
	cacheMissesTotal.Inc()
	return model.Account{}, false
}

// Generation returns the nickname's invalidation generation. Take it before
// reading the store and hand it to SetIfCurrent.
func (c *CacheService) Generation(nickname string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[c.stripe(nickname)]
}

// SetIfCurrent stores a copy of a unless the nickname was invalidated after
// gen was taken. Oversized files are not cached. It reports whether the
// snapshot was stored.
func (c *CacheService) SetIfCurrent(a *model.Account, gen uint64) bool {
	if c.cache == nil || len(a.Content) > maxCachedContent {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[c.stripe(a.Nickname)] != gen {
		return false
	}
	c.cache.Add(a.Nickname, *a)
	return true
}

func (c *CacheService) Invalidate(nickname string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[c.stripe(nickname)]++
	if c.cache != nil {
		c.cache.Remove(nickname)
	}
}

func (c *CacheService) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *CacheService) stripe(nickname string) uint64 {
	return maphash.String(c.seed, nickname) & (generationStripes - 1)
}
