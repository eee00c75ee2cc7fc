package geocode

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/textutil"
)

// cacheEntry remembers the outcome of one lookup. Misses are cached
// too: an address the API cannot resolve will not resolve on retry
// either, and repeat lookups still cost quota.
type cacheEntry struct {
	loc      *Location
	notFound bool
}

// CachedGeocoder memoizes lookups by normalized address.
type CachedGeocoder struct {
	inner  Geocoder
	logger logger.Interface

	mu     sync.Mutex
	cache  map[string]cacheEntry
	hits   int
	misses int
}

var _ Geocoder = (*CachedGeocoder)(nil)

// NewCached wraps a geocoder with an in-memory cache.
func NewCached(inner Geocoder, log logger.Interface) *CachedGeocoder {
	return &CachedGeocoder{
		inner:  inner,
		logger: log.WithComponent("geocode_cache"),
		cache:  make(map[string]cacheEntry),
	}
}

// Geocode resolves an address, consulting the cache first.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (*Location, error) {
	key := cacheKey(address)

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok {
		c.hits++
		c.mu.Unlock()
		if entry.notFound {
			return nil, ErrNotFound
		}
		return entry.loc, nil
	}
	c.misses++
	c.mu.Unlock()

	loc, err := c.inner.Geocode(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.mu.Lock()
			c.cache[key] = cacheEntry{notFound: true}
			c.mu.Unlock()
		}
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{loc: loc}
	c.mu.Unlock()
	return loc, nil
}

// Stats reports cache effectiveness counters.
func (c *CachedGeocoder) Stats() (hits, misses int, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return c.hits, c.misses, hitRate
}

// Clear drops all cached entries and resets the counters.
func (c *CachedGeocoder) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}

// cacheKey normalizes an address so trivially different spellings of
// the same address share an entry.
func cacheKey(address string) string {
	return strings.ToLower(textutil.Normalize(address))
}
