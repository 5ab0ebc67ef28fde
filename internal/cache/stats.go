package cache

import "sync/atomic"

// Stats снимок статистики одного уровня кеша.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	Promotions int64   `json:"promotions"`
	Size       int     `json:"size"`
	HitRate    float64 `json:"hit_rate"`
}

// counters атомарные счетчики уровня кеша.
type counters struct {
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	promotions atomic.Int64
}

// snapshot возвращает текущие значения счетчиков.
func (c *counters) snapshot(size int) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:       hits,
		Misses:     misses,
		Evictions:  c.evictions.Load(),
		Promotions: c.promotions.Load(),
		Size:       size,
		HitRate:    hitRate,
	}
}
