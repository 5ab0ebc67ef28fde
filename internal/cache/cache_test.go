package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryCache_GetSet(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	c.Set("k1", []byte("v1"))

	got, err := c.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	c.Delete("k1")
	_, err = c.Get("k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c, err := NewMemoryCache(2)
	require.NoError(t, err)

	c.Set("k1", []byte("v1"))
	c.Set("k2", []byte("v2"))

	// Обращение к k1 делает k2 самым старым
	_, err = c.Get("k1")
	require.NoError(t, err)

	c.Set("k3", []byte("v3"))

	_, err = c.Get("k2")
	assert.ErrorIs(t, err, ErrNotFound, "least recently used entry should be evicted")

	_, err = c.Get("k1")
	assert.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
}

func TestMemoryCache_Stats(t *testing.T) {
	c, err := NewMemoryCache(10)
	require.NoError(t, err)

	c.Set("k1", []byte("v1"))

	_, _ = c.Get("k1")      // hit
	_, _ = c.Get("k1")      // hit
	_, _ = c.Get("missing") // miss

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
}

func newTestBoltCache(t *testing.T) *BoltCache {
	t.Helper()

	c, err := NewBoltCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestBoltCache_GetSet(t *testing.T) {
	c := newTestBoltCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete(ctx, "k1"))
	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltCache_TTLExpiry(t *testing.T) {
	c := newTestBoltCache(t)
	ctx := context.Background()

	// Срок хранится с точностью до секунды, поэтому наносекундный ttl
	// дает запись, просроченную в ту же секунду
	require.NoError(t, c.Set(ctx, "expired", []byte("v1"), time.Nanosecond))
	require.NoError(t, c.Set(ctx, "alive", []byte("v2"), time.Hour))

	_, err := c.Get(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound, "expired entry reads as a miss")

	got, err := c.Get(ctx, "alive")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// Просроченная запись вычищена лениво при чтении
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestBoltCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := NewBoltCache(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, c.Close())

	reopened, err := NewBoltCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "entries must survive process restart")
}

func TestBoltCache_Clear(t *testing.T) {
	c := newTestBoltCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, c.Set(ctx, "k2", []byte("v2"), 0))
	require.Equal(t, 2, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())

	// Кеш остается рабочим после очистки
	require.NoError(t, c.Set(ctx, "k3", []byte("v3"), 0))
	got, err := c.Get(ctx, "k3")
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), got)
}

func newTestManager(t *testing.T, l1Size int) *Manager {
	t.Helper()

	m, err := NewManager(l1Size, filepath.Join(t.TempDir(), "cache.db"), time.Hour, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func TestManager_SetWritesBothLevels(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1")))

	l1Value, err := m.l1.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), l1Value)

	l2Value, err := m.l2.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), l2Value)
}

func TestManager_PromotionFromL2(t *testing.T) {
	m := newTestManager(t, 2)
	ctx := context.Background()

	// k1 выдавливается из L1, но остается в L2
	require.NoError(t, m.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, m.Set(ctx, "k2", []byte("v2")))
	require.NoError(t, m.Set(ctx, "k3", []byte("v3")))

	_, err := m.l1.Get("k1")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	// После попадания в L2 значение продвинуто обратно в L1
	l1Value, err := m.l1.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), l1Value)
	assert.Equal(t, int64(1), m.l1.Stats().Promotions)
}

func TestManager_MissOnBothLevels(t *testing.T) {
	m := newTestManager(t, 10)

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, m.Delete(ctx, "k1"))

	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Warm(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	values := make(map[string][]byte, 5)
	for i := range 5 {
		values[fmt.Sprintf("k%d", i)] = []byte(fmt.Sprintf("v%d", i))
	}
	require.NoError(t, m.Warm(ctx, values))

	for key, want := range values {
		got, err := m.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1")))

	_, _ = m.Get(ctx, "k1")      // L1 hit
	_, _ = m.Get(ctx, "missing") // miss on both

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.L1.Hits)
	assert.Equal(t, int64(1), stats.L1.Misses)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.InDelta(t, 0.5, stats.OverallHitRate, 0.001)
}
