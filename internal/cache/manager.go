// Package cache реализует двухуровневый кеш: быстрый LRU в памяти (L1)
// и персистентный TTL-кеш на BoltDB (L2) с продвижением значений на
// верхний уровень при попадании.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ManagerStats статистика по всем уровням кеша.
type ManagerStats struct {
	L1             Stats   `json:"l1"`
	L2             Stats   `json:"l2"`
	TotalHits      int64   `json:"total_hits"`
	TotalMisses    int64   `json:"total_misses"`
	OverallHitRate float64 `json:"overall_hit_rate"`
}

// Manager координирует уровни кеша: чтение L1 -> L2 с продвижением,
// запись в оба уровня.
type Manager struct {
	l1     *MemoryCache
	l2     *BoltCache
	logger *slog.Logger
	ttl    time.Duration
}

// NewManager создает менеджер кеша.
// l1Size — емкость LRU, path — файл BoltDB, ttl — срок жизни записей L2.
func NewManager(l1Size int, path string, ttl time.Duration, logger *slog.Logger) (*Manager, error) {
	l1, err := NewMemoryCache(l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	l2, err := NewBoltCache(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt cache: %w", err)
	}

	logger.Info("cache manager initialized",
		"l1_size", l1Size,
		"l2_path", path,
		"l2_ttl", ttl,
	)

	return &Manager{l1: l1, l2: l2, logger: logger, ttl: ttl}, nil
}

// Close закрывает персистентный уровень.
func (m *Manager) Close() error {
	return m.l2.Close()
}

// Get ищет значение: сначала L1, затем L2 с продвижением в L1.
// Отсутствие на обоих уровнях — ErrNotFound.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := m.l1.Get(key)
	if err == nil {
		return value, nil
	}

	value, err = m.l2.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		// Ошибка ввода-вывода L2 не фатальна для чтения - считаем промахом
		m.logger.Error("l2 cache get failed", "key", key, "error", err)
		return nil, ErrNotFound
	}

	m.l1.Set(key, value)
	m.l1.counters.promotions.Add(1)

	return value, nil
}

// Set записывает значение в оба уровня.
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	m.l1.Set(key, value)

	if err := m.l2.Set(ctx, key, value, m.ttl); err != nil {
		return fmt.Errorf("failed to set l2 cache entry: %w", err)
	}
	return nil
}

// Delete убирает запись со всех уровней.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.l1.Delete(key)

	if err := m.l2.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete l2 cache entry: %w", err)
	}
	return nil
}

// Clear очищает все уровни.
func (m *Manager) Clear(ctx context.Context) error {
	m.l1.Clear()

	if err := m.l2.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear l2 cache: %w", err)
	}
	return nil
}

// Warm предзаполняет кеш известными значениями.
func (m *Manager) Warm(ctx context.Context, values map[string][]byte) error {
	for key, value := range values {
		if err := m.Set(ctx, key, value); err != nil {
			return err
		}
	}

	m.logger.Info("cache warmed", "count", len(values))
	return nil
}

// Stats возвращает статистику всех уровней и сводную.
func (m *Manager) Stats() ManagerStats {
	l1 := m.l1.Stats()
	l2 := m.l2.Stats()

	stats := ManagerStats{
		L1:          l1,
		L2:          l2,
		TotalHits:   l1.Hits + l2.Hits,
		TotalMisses: l1.Misses + l2.Misses,
	}

	// Итоговый hit rate считается от запросов к менеджеру (входы в L1);
	// обращения к L2 - это fallback, а не отдельные запросы
	if requests := l1.Hits + l1.Misses; requests > 0 {
		stats.OverallHitRate = float64(stats.TotalHits) / float64(requests)
	}

	return stats
}
