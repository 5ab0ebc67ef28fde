package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket for cache entries
	bucketCache = []byte("cache")
)

// boltEntry конверт значения в BoltDB: само значение плюс срок жизни.
type boltEntry struct {
	Value     []byte `msgpack:"value"`
	ExpiresAt int64  `msgpack:"expires_at"` // epoch seconds, 0 = без срока
	CreatedAt int64  `msgpack:"created_at"`
}

// BoltCache персистентный TTL-кеш на BoltDB (уровень L2). Просроченные
// записи вычищаются лениво при чтении.
type BoltCache struct {
	db       *bbolt.DB
	counters counters
}

// NewBoltCache открывает (или создает) файл кеша по заданному пути.
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Close закрывает файл кеша.
func (c *BoltCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get возвращает значение по ключу. Просроченная запись удаляется и
// считается промахом.
func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.db == nil {
		return nil, ErrCacheClosed
	}

	var entry boltEntry
	found := false

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCache).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := msgpack.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to unmarshal cache entry: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !found {
		c.counters.misses.Add(1)
		return nil, ErrNotFound
	}

	if entry.ExpiresAt > 0 && entry.ExpiresAt <= time.Now().Unix() {
		c.counters.evictions.Add(1)
		c.counters.misses.Add(1)
		if err := c.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	c.counters.hits.Add(1)
	return entry.Value, nil
}

// Set записывает значение по ключу. Нулевой ttl — запись без срока жизни.
func (c *BoltCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.db == nil {
		return ErrCacheClosed
	}

	now := time.Now()
	entry := boltEntry{
		Value:     value,
		CreatedAt: now.Unix(),
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl).Unix()
	}

	data, err := msgpack.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

// Delete убирает запись по ключу.
func (c *BoltCache) Delete(ctx context.Context, key string) error {
	if c.db == nil {
		return ErrCacheClosed
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Clear удаляет все записи.
func (c *BoltCache) Clear(ctx context.Context) error {
	if c.db == nil {
		return ErrCacheClosed
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketCache); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	return nil
}

// Len возвращает количество записей (включая просроченные, еще не
// вычищенные лениво).
func (c *BoltCache) Len() int {
	if c.db == nil {
		return 0
	}

	count := 0
	_ = c.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketCache).Stats().KeyN
		return nil
	})
	return count
}

// Stats возвращает снимок статистики уровня.
func (c *BoltCache) Stats() Stats {
	return c.counters.snapshot(c.Len())
}
