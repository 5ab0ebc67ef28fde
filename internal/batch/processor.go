// Package batch реализует группировку однотипных операций в батчи:
// элементы копятся до порога размера или таймера ожидания, затем батч
// выполняется целиком с ретраями и экспоненциальной задержкой.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Common batch processor errors
var (
	// ErrNoProcessor indicates that no batch func is registered for the operation
	ErrNoProcessor = errors.New("no processor registered for operation")

	// ErrNoResult indicates that the batch func returned no result for an item
	ErrNoResult = errors.New("batch processor returned no result for item")

	// ErrProcessorClosed indicates that the processor is closed
	ErrProcessorClosed = errors.New("batch processor is closed")
)

// Func выполняет один батч и возвращает результаты по id элементов.
// Ошибка проваливает весь батч (он будет повторен целиком).
type Func func(ctx context.Context, items []*Item) (map[string]any, error)

// Item один элемент батча.
type Item struct {
	EnqueuedAt time.Time
	Params     map[string]any
	ID         string
	Operation  string
}

// Stats статистика процессора.
type Stats struct {
	TotalItems    int64   `json:"total_items"`
	TotalBatches  int64   `json:"total_batches"`
	TotalFailures int64   `json:"total_failures"`
	AvgBatchSize  float64 `json:"avg_batch_size"`
}

type result struct {
	value any
	err   error
}

type pendingItem struct {
	item *Item
	done chan result
}

// Option настраивает Processor при создании.
type Option func(*Processor)

// WithBatchSize задает порог размера батча (по умолчанию 50).
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.batchSize = n }
}

// WithWaitTime задает максимальное время ожидания набора батча
// (по умолчанию 500ms).
func WithWaitTime(d time.Duration) Option {
	return func(p *Processor) { p.waitTime = d }
}

// WithMaxRetries задает количество повторов неудачного батча
// (по умолчанию 3).
func WithMaxRetries(n uint64) Option {
	return func(p *Processor) { p.maxRetries = n }
}

// WithRetryBase задает базовую задержку экспоненциального бэкоффа
// (по умолчанию 100ms).
func WithRetryBase(d time.Duration) Option {
	return func(p *Processor) { p.retryBase = d }
}

// Processor группирует операции в батчи по типу операции.
type Processor struct {
	logger *slog.Logger

	batchSize  int
	waitTime   time.Duration
	maxRetries uint64
	retryBase  time.Duration

	mu      sync.Mutex
	funcs   map[string]Func
	pending map[string][]*pendingItem
	timers  map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup

	totalItems    int64
	totalBatches  int64
	totalFailures int64
	sumBatchSize  int64
}

// New создает новый Processor.
func New(logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		logger:     logger,
		batchSize:  50,
		waitTime:   500 * time.Millisecond,
		maxRetries: 3,
		retryBase:  100 * time.Millisecond,
		funcs:      make(map[string]Func),
		pending:    make(map[string][]*pendingItem),
		timers:     make(map[string]*time.Timer),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Register регистрирует обработчик батчей для типа операции.
func (p *Processor) Register(operation string, fn Func) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.funcs[operation] = fn
	p.logger.Debug("registered batch processor", "operation", operation)
}

// Add ставит элемент в батч и блокируется до результата или отмены ctx.
// Батч уходит на выполнение при достижении порога размера либо по
// истечении времени ожидания.
func (p *Processor) Add(ctx context.Context, operation string, params map[string]any) (any, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProcessorClosed
	}

	fn, ok := p.funcs[operation]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoProcessor, operation)
	}

	pi := &pendingItem{
		item: &Item{
			ID:         uuid.New().String(),
			Operation:  operation,
			Params:     params,
			EnqueuedAt: time.Now(),
		},
		done: make(chan result, 1),
	}

	p.pending[operation] = append(p.pending[operation], pi)
	p.totalItems++

	var batch []*pendingItem
	if len(p.pending[operation]) >= p.batchSize {
		batch = p.takeLocked(operation)
	} else if p.timers[operation] == nil {
		p.timers[operation] = time.AfterFunc(p.waitTime, func() {
			p.flushOperation(operation)
		})
	}
	p.mu.Unlock()

	if batch != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runBatch(operation, fn, batch)
		}()
	}

	select {
	case r := <-pi.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush синхронно выполняет все накопленные батчи.
func (p *Processor) Flush() {
	p.mu.Lock()
	operations := make([]string, 0, len(p.pending))
	for op := range p.pending {
		operations = append(operations, op)
	}
	p.mu.Unlock()

	for _, op := range operations {
		p.flushOperation(op)
	}
}

// Close закрывает процессор: выполняет накопленное и дожидается
// выполняющихся батчей. Дальнейшие Add возвращают ErrProcessorClosed.
func (p *Processor) Close() {
	p.mu.Lock()
	p.closed = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = make(map[string]*time.Timer)

	type flush struct {
		fn    Func
		batch []*pendingItem
		op    string
	}
	var flushes []flush
	for op, batch := range p.pending {
		if len(batch) > 0 {
			flushes = append(flushes, flush{op: op, fn: p.funcs[op], batch: batch})
		}
	}
	p.pending = make(map[string][]*pendingItem)
	p.mu.Unlock()

	for _, f := range flushes {
		p.runBatch(f.op, f.fn, f.batch)
	}

	p.wg.Wait()
}

// Stats возвращает снимок статистики.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{
		TotalItems:    p.totalItems,
		TotalBatches:  p.totalBatches,
		TotalFailures: p.totalFailures,
	}
	if p.totalBatches > 0 {
		stats.AvgBatchSize = float64(p.sumBatchSize) / float64(p.totalBatches)
	}
	return stats
}

// takeLocked забирает накопленный батч операции и гасит ее таймер.
// Вызывается под p.mu.
func (p *Processor) takeLocked(operation string) []*pendingItem {
	batch := p.pending[operation]
	delete(p.pending, operation)

	if t := p.timers[operation]; t != nil {
		t.Stop()
		delete(p.timers, operation)
	}

	return batch
}

// flushOperation выполняет накопленный батч одной операции.
func (p *Processor) flushOperation(operation string) {
	p.mu.Lock()
	fn := p.funcs[operation]
	batch := p.takeLocked(operation)
	p.mu.Unlock()

	if len(batch) == 0 || fn == nil {
		return
	}

	p.runBatch(operation, fn, batch)
}

// runBatch выполняет один батч с ретраями и раздает результаты элементам.
func (p *Processor) runBatch(operation string, fn Func, batch []*pendingItem) {
	items := make([]*Item, len(batch))
	for i, pi := range batch {
		items[i] = pi.item
	}

	backoff := retry.WithMaxRetries(p.maxRetries, retry.NewExponential(p.retryBase))

	var results map[string]any
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		r, ferr := fn(ctx, items)
		if ferr != nil {
			p.logger.Warn("batch attempt failed",
				"operation", operation,
				"items", len(items),
				"error", ferr,
			)
			return retry.RetryableError(ferr)
		}
		results = r
		return nil
	})

	p.mu.Lock()
	p.totalBatches++
	p.sumBatchSize += int64(len(batch))
	if err != nil {
		p.totalFailures += int64(len(batch))
	}
	p.mu.Unlock()

	if err != nil {
		failure := fmt.Errorf("batch %s failed: %w", operation, err)
		for _, pi := range batch {
			pi.done <- result{err: failure}
		}
		return
	}

	for _, pi := range batch {
		if value, ok := results[pi.item.ID]; ok {
			pi.done <- result{value: value}
		} else {
			pi.done <- result{err: ErrNoResult}
		}
	}
}
