package statestore

import "context"

//go:generate moq -out channel_mock.go . EventChannel

// EventChannel определяет интерфейс шины событий, через которую реплики
// обмениваются состоянием.
//
// Контракт доставки: at-least-once, без гарантий порядка, возможны
// дубликаты. Store этого и не требует: применение событий идемпотентно
// (полная перезапись значения), порядок между сущностями не нужен.
type EventChannel interface {
	// Publish доставляет payload всем подписчикам топика
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe регистрирует обработчик топика и возвращает функцию отписки
	Subscribe(topic string, handler func(payload []byte)) (func(), error)
}
