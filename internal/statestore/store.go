// Package statestore реализует локальную реплику распределенного
// состояния: кеш сущностей, векторы версий, обнаружение конфликтов и
// протокол синхронизации поверх шины событий.
//
// Store никогда не возвращает ошибок из-за промаха кеша или плохих
// данных от пиров: все восстановимые проблемы поглощаются внутри с
// логированием (доступность важнее строгой сигнализации ошибок).
package statestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/statesync/internal/conflict"
	"github.com/iudanet/statesync/internal/crdt"
	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/pkg/wire"
)

// DefaultConflictWindow окно обнаружения конфликтов по умолчанию:
// удаленное событие для уже имеющейся сущности считается конкурентным,
// если пришло в пределах этого интервала от текущего времени.
//
// Это эвристика, а не проверка причинности: она пропускает настоящие
// конкурентные конфликты при рассинхронизации часов и дает ложные
// срабатывания на два быстрых последовательных легитимных изменения.
const DefaultConflictWindow = 5 * time.Second

// Common state store errors
var (
	// ErrEmptyIdentity indicates an empty entity type or id
	ErrEmptyIdentity = errors.New("entity type and id must not be empty")

	// ErrNilEntity indicates that a nil entity was passed to Set
	ErrNilEntity = errors.New("entity must not be nil")
)

// Option настраивает Store при создании.
type Option func(*Store)

// WithReplicaID задает идентификатор реплики (по умолчанию UUID).
func WithReplicaID(id string) Option {
	return func(s *Store) { s.replicaID = id }
}

// WithConflictWindow задает окно обнаружения конфликтов.
func WithConflictWindow(d time.Duration) Option {
	return func(s *Store) { s.window = d }
}

// WithResolver задает резолвер конфликтов.
func WithResolver(r conflict.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// WithClock задает источник времени. Используется в тестах для
// управления окном конфликтов.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store держит представление одной реплики обо всех общих сущностях и
// поддерживает его согласованным с пирами через шину событий, без
// центрального координатора.
type Store struct {
	channel  EventChannel
	logger   *slog.Logger
	resolver conflict.Resolver
	now      func() time.Time

	replicaID string
	window    time.Duration

	mu       sync.RWMutex
	entities map[string]models.Entity      // key == entityType + ":" + entityId
	vectors  map[string]crdt.VersionVector // key == entityType + ":" + entityId

	unsubscribe []func()
}

// New создает Store и подписывает его на топики синхронизации.
// Вызывающий обязан вызвать Close, чтобы снять подписки.
func New(channel EventChannel, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		channel:   channel,
		logger:    logger,
		replicaID: uuid.New().String(),
		window:    DefaultConflictWindow,
		now:       time.Now,
		entities:  make(map[string]models.Entity),
		vectors:   make(map[string]crdt.VersionVector),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.resolver == nil {
		s.resolver = conflict.NewResolver(logger)
	}

	subscriptions := map[string]func(payload []byte){
		wire.TopicStateChange:  s.handleStateChange,
		wire.TopicSyncRequest:  s.handleSyncRequest,
		wire.TopicSyncResponse: s.handleSyncResponse,
	}

	for topic, handler := range subscriptions {
		unsub, err := channel.Subscribe(topic, handler)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		s.unsubscribe = append(s.unsubscribe, unsub)
	}

	return s, nil
}

// Close снимает все подписки Store на шине.
func (s *Store) Close() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil
}

// ReplicaID возвращает идентификатор этой реплики.
func (s *Store) ReplicaID() string { return s.replicaID }

// Len возвращает количество локально закешированных сущностей.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entities)
}

// VersionVector возвращает копию вектора версий сущности или nil.
func (s *Store) VersionVector(entityType, entityID string) crdt.VersionVector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vv, ok := s.vectors[key(entityType, entityID)]
	if !ok {
		return nil
	}
	return vv.Clone()
}

// Get возвращает локальную копию сущности, если она есть. При промахе
// публикует sync-запрос (fire-and-forget) и перечитывает кеш один раз:
// блокирующего ожидания ответа пира нет, первый вызов может вернуть nil,
// даже если пир позже пришлет данные. Отсутствие — валидное состояние,
// не ошибка.
func (s *Store) Get(ctx context.Context, entityType, entityID string) (models.Entity, error) {
	if entityType == "" || entityID == "" {
		return nil, ErrEmptyIdentity
	}

	k := key(entityType, entityID)

	s.mu.RLock()
	e, ok := s.entities[k]
	s.mu.RUnlock()

	if ok {
		return e.Clone(), nil
	}

	req := wire.SyncRequest{
		EntityType:          entityType,
		EntityID:            entityID,
		RequestingReplicaID: s.replicaID,
		Timestamp:           wire.Now(),
	}
	s.publish(ctx, wire.TopicSyncRequest, req)

	// Перечитываем: при синхронной внутрипроцессной шине ответ пира
	// мог уже примениться
	s.mu.RLock()
	e, ok = s.entities[k]
	s.mu.RUnlock()

	if ok {
		return e.Clone(), nil
	}
	return nil, nil
}

// Set записывает сущность в локальный кеш, увеличивает счетчик этой
// реплики в векторе версий и публикует StateChangeEvent. Собственный
// обработчик реплики распознает событие по sourceReplicaId и игнорирует
// его, исключая петлю обратной связи.
func (s *Store) Set(ctx context.Context, entityType, entityID string, entity models.Entity, correlationID ...string) error {
	if entityType == "" || entityID == "" {
		return ErrEmptyIdentity
	}
	if entity == nil {
		return ErrNilEntity
	}

	k := key(entityType, entityID)

	s.mu.Lock()
	changeType := wire.ChangeTypeUpdate
	if _, exists := s.entities[k]; !exists {
		changeType = wire.ChangeTypeCreate
	}

	s.entities[k] = entity.Clone()

	vv, ok := s.vectors[k]
	if !ok {
		vv = crdt.NewVersionVector()
		s.vectors[k] = vv
	}
	vv.Increment(s.replicaID)
	s.mu.Unlock()

	data, err := models.Encode(entity)
	if err != nil {
		return fmt.Errorf("failed to encode entity: %w", err)
	}

	ev := wire.StateChangeEvent{
		ChangeType:      changeType,
		EntityType:      entityType,
		EntityID:        entityID,
		Data:            data,
		Timestamp:       wire.Now(),
		SourceReplicaID: s.replicaID,
		CorrelationID:   first(correlationID),
	}
	s.publish(ctx, wire.TopicStateChange, ev)

	return nil
}

// Delete удаляет сущность и ее вектор версий и публикует delete-событие.
// Если сущности нет — no-op: ничего не публикуется, ошибки нет.
func (s *Store) Delete(ctx context.Context, entityType, entityID string, correlationID ...string) error {
	if entityType == "" || entityID == "" {
		return ErrEmptyIdentity
	}

	k := key(entityType, entityID)

	s.mu.Lock()
	if _, exists := s.entities[k]; !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.entities, k)
	delete(s.vectors, k)
	s.mu.Unlock()

	ev := wire.StateChangeEvent{
		ChangeType:      wire.ChangeTypeDelete,
		EntityType:      entityType,
		EntityID:        entityID,
		Timestamp:       wire.Now(),
		SourceReplicaID: s.replicaID,
		CorrelationID:   first(correlationID),
	}
	s.publish(ctx, wire.TopicStateChange, ev)

	return nil
}

func key(entityType, entityID string) string {
	return entityType + ":" + entityID
}

func first(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
