package docs

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// ViewCache keeps the records fetched for the current list page or detail
// view. It is dropped whenever the view changes and is never consulted as a
// source of truth for mutations.
type ViewCache struct {
	cache *cache.Cache
}

// NewViewCache creates a cache whose entries expire after ttl.
func NewViewCache(ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ViewCache{cache: cache.New(ttl, 2*ttl)}
}

func (c *ViewCache) Put(records ...FileRecord) {
	for _, rec := range records {
		c.cache.Set(cacheKey(rec.FileID), rec, cache.DefaultExpiration)
	}
}

func (c *ViewCache) Get(fileID int64) (FileRecord, bool) {
	if x, found := c.cache.Get(cacheKey(fileID)); found {
		return x.(FileRecord), true
	}
	return FileRecord{}, false
}

func (c *ViewCache) Delete(fileID int64) {
	c.cache.Delete(cacheKey(fileID))
}

// Reset drops every entry. Called when the user leaves a view.
func (c *ViewCache) Reset() {
	c.cache.Flush()
}

func (c *ViewCache) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
