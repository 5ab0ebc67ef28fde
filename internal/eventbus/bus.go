// Package eventbus реализует внутрипроцессную шину публикации/подписки,
// через которую реплики обмениваются событиями синхронизации.
//
// Контракт доставки: at-least-once, без гарантий порядка. Подписчики
// обязаны быть идемпотентными и терпимыми к дубликатам — шина может
// доставить одно событие повторно, порядок между топиками и внутри
// топика не оговаривается.
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common event bus errors
var (
	// ErrBusClosed indicates that the bus is closed
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilHandler indicates that a nil handler was passed to Subscribe
	ErrNilHandler = errors.New("handler must not be nil")
)

// Handler обрабатывает один payload с топика. Payload разделяется между
// подписчиками, мутировать его нельзя.
//
// Алиас, а не новый тип: сигнатура Subscribe должна совпадать с
// интерфейсом statestore.EventChannel.
type Handler = func(payload []byte)

// Bus in-process реализация шины событий с доставкой по имени топика.
// Паника в обработчике перехватывается и логируется, публикующая сторона
// ее не видит.
type Bus struct {
	logger *slog.Logger
	subs   map[string]map[string]Handler // topic -> subscription id -> handler
	mu     sync.RWMutex
	closed bool
}

// New создает новую шину событий.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string]map[string]Handler),
	}
}

// Publish доставляет payload всем текущим подписчикам топика.
// Доставка синхронная, в горутине вызывающего; ошибки и паники
// обработчиков не прерывают доставку остальным.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}

	// Снимок обработчиков: подписки могут меняться во время доставки
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(topic, h, payload)
	}

	return nil
}

// Subscribe регистрирует обработчик топика и возвращает функцию отписки.
// Отписка идемпотентна.
func (b *Bus) Subscribe(topic string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]Handler)
	}

	id := uuid.New().String()
	b.subs[topic][id] = handler

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}

	return unsubscribe, nil
}

// Close закрывает шину: дальнейшие Publish и Subscribe возвращают
// ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = make(map[string]map[string]Handler)
}

// deliver вызывает один обработчик, перехватывая панику.
func (b *Bus) deliver(topic string, h Handler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"topic", topic,
				"panic", r,
			)
		}
	}()

	h(payload)
}
