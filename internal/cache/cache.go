package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/BondSpread/iol-arb/internal/models"
)

// Cache provides short-lived in-memory caching for bond quotes, so repeated
// lookups inside one refresh cycle hit the API only once per symbol.
type Cache struct {
	quotes *gocache.Cache
	ttl    time.Duration
}

// NewCache creates a new cache instance
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		quotes: gocache.New(ttl, ttl*2),
		ttl:    ttl,
	}
}

// GetQuote retrieves a cached quote
func (c *Cache) GetQuote(symbol string) (*models.Quote, bool) {
	if val, found := c.quotes.Get(symbol); found {
		if quote, ok := val.(*models.Quote); ok {
			return quote, true
		}
	}
	return nil, false
}

// SetQuote caches a quote
func (c *Cache) SetQuote(symbol string, quote *models.Quote) {
	c.quotes.Set(symbol, quote, c.ttl)
}

// Clear removes all cached quotes
func (c *Cache) Clear() {
	c.quotes.Flush()
}

// Count returns the number of cached quotes
func (c *Cache) Count() int {
	return c.quotes.ItemCount()
}
