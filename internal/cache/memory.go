package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common cache errors
var (
	// ErrNotFound indicates that the key is absent or expired
	ErrNotFound = errors.New("cache entry not found")

	// ErrCacheClosed indicates that the cache is closed
	ErrCacheClosed = errors.New("cache is closed")
)

// MemoryCache быстрый LRU-кеш в памяти (уровень L1).
type MemoryCache struct {
	lru      *lru.Cache[string, []byte]
	counters counters
}

// NewMemoryCache создает LRU-кеш на maxSize записей.
func NewMemoryCache(maxSize int) (*MemoryCache, error) {
	c := &MemoryCache{}

	l, err := lru.NewWithEvict(maxSize, func(string, []byte) {
		c.counters.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l

	return c, nil
}

// Get возвращает значение по ключу или ErrNotFound.
func (c *MemoryCache) Get(key string) ([]byte, error) {
	value, ok := c.lru.Get(key)
	if !ok {
		c.counters.misses.Add(1)
		return nil, ErrNotFound
	}

	c.counters.hits.Add(1)
	return value, nil
}

// Set записывает значение по ключу.
func (c *MemoryCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
}

// Delete убирает запись по ключу.
func (c *MemoryCache) Delete(key string) {
	c.lru.Remove(key)
}

// Clear удаляет все записи.
func (c *MemoryCache) Clear() {
	c.lru.Purge()
}

// Stats возвращает снимок статистики уровня.
func (c *MemoryCache) Stats() Stats {
	return c.counters.snapshot(c.lru.Len())
}
