// Package resource управляет ресурсами конкурентных операций: на каждый
// именованный сервис — семафор параллелизма и token-bucket ограничитель
// частоты запросов.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limits лимиты одного сервиса.
type Limits struct {
	MaxConcurrent     int64 // максимум одновременных операций
	RequestsPerMinute int   // установившаяся частота запросов
	BurstSize         int   // размер всплеска token bucket
}

// DefaultLimits лимиты для сервисов без явной конфигурации.
var DefaultLimits = Limits{
	MaxConcurrent:     10,
	RequestsPerMinute: 60,
	BurstSize:         10,
}

// UsageStats снимок использования одного сервиса.
type UsageStats struct {
	Active        int64 `json:"active"`
	TotalAcquired int64 `json:"total_acquired"`
	Rejected      int64 `json:"rejected"`
	MaxConcurrent int64 `json:"max_concurrent"`
	MaxObserved   int64 `json:"max_observed"`
}

// service ресурсы одного именованного сервиса.
type service struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	limits  Limits

	active        atomic.Int64
	totalAcquired atomic.Int64
	rejected      atomic.Int64
	maxObserved   atomic.Int64
}

// Manager держит ресурсы всех сервисов.
type Manager struct {
	logger   *slog.Logger
	mu       sync.Mutex
	services map[string]*service
}

// NewManager создает новый Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		services: make(map[string]*service),
	}
}

// Configure задает лимиты сервиса. Переопределяет предыдущие; уже
// выданные разрешения не отзываются.
func (m *Manager) Configure(name string, limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services[name] = newService(limits)
	m.logger.Info("configured service limits",
		"service", name,
		"max_concurrent", limits.MaxConcurrent,
		"requests_per_minute", limits.RequestsPerMinute,
		"burst", limits.BurstSize,
	)
}

// Acquire ждет слот семафора и токен ограничителя частоты. Возвращает
// функцию освобождения (идемпотентную). Блокируется до получения или
// отмены ctx.
func (m *Manager) Acquire(ctx context.Context, name string) (func(), error) {
	svc := m.service(name)

	if err := svc.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", name, err)
	}
	if err := svc.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire for %s: %w", name, err)
	}

	svc.acquired()

	var once sync.Once
	return func() {
		once.Do(func() {
			svc.active.Add(-1)
			svc.sem.Release(1)
		})
	}, nil
}

// TryAcquire пытается получить слот и токен без ожидания.
func (m *Manager) TryAcquire(name string) (func(), bool) {
	svc := m.service(name)

	if !svc.limiter.Allow() {
		svc.rejected.Add(1)
		return nil, false
	}
	if !svc.sem.TryAcquire(1) {
		svc.rejected.Add(1)
		return nil, false
	}

	svc.acquired()

	var once sync.Once
	return func() {
		once.Do(func() {
			svc.active.Add(-1)
			svc.sem.Release(1)
		})
	}, true
}

// Stats возвращает снимок использования сервиса.
func (m *Manager) Stats(name string) UsageStats {
	svc := m.service(name)

	return UsageStats{
		Active:        svc.active.Load(),
		TotalAcquired: svc.totalAcquired.Load(),
		Rejected:      svc.rejected.Load(),
		MaxConcurrent: svc.limits.MaxConcurrent,
		MaxObserved:   svc.maxObserved.Load(),
	}
}

// service возвращает ресурсы сервиса, создавая их с лимитами по
// умолчанию при первом обращении.
func (m *Manager) service(name string) *service {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.services[name]
	if !ok {
		svc = newService(DefaultLimits)
		m.services[name] = svc
	}
	return svc
}

func newService(limits Limits) *service {
	return &service{
		sem:     semaphore.NewWeighted(limits.MaxConcurrent),
		limiter: rate.NewLimiter(rate.Limit(float64(limits.RequestsPerMinute)/60.0), limits.BurstSize),
		limits:  limits,
	}
}

// acquired обновляет счетчики после успешного получения слота.
func (s *service) acquired() {
	s.totalAcquired.Add(1)
	active := s.active.Add(1)

	for {
		observed := s.maxObserved.Load()
		if active <= observed || s.maxObserved.CompareAndSwap(observed, active) {
			break
		}
	}
}
