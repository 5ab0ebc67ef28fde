package statestore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/statesync/internal/conflict"
	"github.com/iudanet/statesync/internal/crdt"
	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/pkg/wire"
)

// handleStateChange обрабатывает каждое сообщение топика state.change.
// Плохое сообщение от пира не должно уронить или рассинхронизировать
// локальную реплику: любой сбой разбора логируется и сообщение
// отбрасывается.
func (s *Store) handleStateChange(payload []byte) {
	var ev wire.StateChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.Warn("dropping malformed state change event", "error", err)
		return
	}
	if ev.EntityType == "" || ev.EntityID == "" {
		s.logger.Warn("dropping state change event without identity",
			"change_type", ev.ChangeType)
		return
	}

	// Собственное событие, вернувшееся с шины - игнорируем,
	// иначе петля обратной связи и двойной инкремент счетчика
	if ev.SourceReplicaID == s.replicaID {
		return
	}

	switch ev.ChangeType {
	case wire.ChangeTypeDelete:
		s.applyRemoteDelete(ev)
	case wire.ChangeTypeCreate, wire.ChangeTypeUpdate:
		s.applyRemoteChange(ev)
	default:
		s.logger.Warn("dropping state change event with unknown change type",
			"change_type", ev.ChangeType,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
		)
	}
}

// applyRemoteDelete убирает сущность и ее вектор версий. Повторная
// доставка безвредна: удаление отсутствующей сущности - no-op.
//
// Удаление не проходит проверку окна конфликтов: для delete у резолвера
// нет альтернатив разрешению last-writer-wins, а результат совпадает с
// прямым применением. Цена упрощения - delete, пришедший внутри окна
// после локальной записи, не публикует запись о конфликте и не
// увеличивает счетчик резолвера.
func (s *Store) applyRemoteDelete(ev wire.StateChangeEvent) {
	k := key(ev.EntityType, ev.EntityID)

	s.mu.Lock()
	delete(s.entities, k)
	delete(s.vectors, k)
	s.mu.Unlock()

	s.logger.Debug("applied remote delete",
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
		"source", ev.SourceReplicaID,
	)
}

// applyRemoteChange применяет удаленный create/update: без конфликта -
// полная перезапись значения (идемпотентно при дубликатах доставки),
// при конфликте - слияние через резолвер.
func (s *Store) applyRemoteChange(ev wire.StateChangeEvent) {
	remote, err := models.Decode(ev.EntityType, ev.Data)
	if err != nil {
		s.logger.Warn("dropping state change event with malformed data",
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"error", err,
		)
		return
	}

	k := key(ev.EntityType, ev.EntityID)

	s.mu.Lock()
	local, exists := s.entities[k]

	if !exists || !s.withinConflictWindow(ev.Timestamp) {
		// Нет конфликта: перезаписываем значение и учитываем ревизию
		// источника в векторе версий
		s.entities[k] = remote
		vv, ok := s.vectors[k]
		if !ok {
			vv = crdt.NewVersionVector()
			s.vectors[k] = vv
		}
		vv.Increment(ev.SourceReplicaID)
		s.mu.Unlock()

		s.logger.Debug("applied remote change",
			"change_type", ev.ChangeType,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"source", ev.SourceReplicaID,
		)
		return
	}

	// Конфликт: сущность уже есть, а удаленная запись пришла внутри
	// окна - считаем записи конкурентными
	detectedAt := s.now().UnixMilli()
	localSnapshot := local.Clone()

	res := s.resolver.Resolve(conflict.Conflict{
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Local:      localSnapshot,
		Remote:     remote,
	})

	s.entities[k] = res.Resolved.Clone()

	// Слияние - новая локальная ревизия
	vv, ok := s.vectors[k]
	if !ok {
		vv = crdt.NewVersionVector()
		s.vectors[k] = vv
	}
	vv.Increment(s.replicaID)
	s.mu.Unlock()

	s.publishResolved(ev, localSnapshot, res, detectedAt)
}

// handleSyncRequest отвечает на sync-запрос пира, если сущность есть
// локально. Ответ адресуется запросившей реплике.
func (s *Store) handleSyncRequest(payload []byte) {
	var req wire.SyncRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("dropping malformed sync request", "error", err)
		return
	}
	if req.RequestingReplicaID == s.replicaID {
		return
	}

	k := key(req.EntityType, req.EntityID)

	s.mu.RLock()
	e, ok := s.entities[k]
	var vv crdt.VersionVector
	if ok {
		e = e.Clone()
		vv = s.vectors[k].Clone()
	}
	s.mu.RUnlock()

	if !ok {
		return
	}

	data, err := models.Encode(e)
	if err != nil {
		s.logger.Error("failed to encode entity for sync response",
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"error", err,
		)
		return
	}

	resp := wire.SyncResponse{
		EntityType:      req.EntityType,
		EntityID:        req.EntityID,
		Data:            data,
		VersionVector:   vv,
		TargetReplicaID: req.RequestingReplicaID,
		SourceReplicaID: s.replicaID,
		Timestamp:       wire.Now(),
	}
	s.publish(context.Background(), wire.TopicSyncResponse, resp)
}

// handleSyncResponse применяет адресованный этой реплике ответ,
// безусловно перезаписывая локальное состояние и вектор версий.
// Ответ не проходит проверку конфликтов и может затереть более новую
// локальную запись, сделанную после отправки запроса - известное
// упрощение протокола, принятое как есть.
func (s *Store) handleSyncResponse(payload []byte) {
	var resp wire.SyncResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Warn("dropping malformed sync response", "error", err)
		return
	}
	if resp.TargetReplicaID != s.replicaID {
		return
	}

	e, err := models.Decode(resp.EntityType, resp.Data)
	if err != nil {
		s.logger.Warn("dropping sync response with malformed data",
			"entity_type", resp.EntityType,
			"entity_id", resp.EntityID,
			"error", err,
		)
		return
	}

	vv := crdt.NewVersionVector()
	vv.Merge(resp.VersionVector)

	k := key(resp.EntityType, resp.EntityID)

	s.mu.Lock()
	s.entities[k] = e
	s.vectors[k] = vv
	s.mu.Unlock()

	s.logger.Debug("applied sync response",
		"entity_type", resp.EntityType,
		"entity_id", resp.EntityID,
		"source", resp.SourceReplicaID,
	)
}

// withinConflictWindow сообщает, попадает ли временная метка события в
// окно конфликтов относительно текущего времени. Берется модуль разницы:
// часы пира могут спешить.
func (s *Store) withinConflictWindow(timestamp int64) bool {
	gap := s.now().Sub(time.UnixMilli(timestamp))
	if gap < 0 {
		gap = -gap
	}
	return gap < s.window
}

// publishResolved публикует запись о разрешенном конфликте для
// наблюдателей.
func (s *Store) publishResolved(ev wire.StateChangeEvent, local models.Entity, res conflict.Resolution, detectedAt int64) {
	localData, err := models.Encode(local)
	if err != nil {
		s.logger.Error("failed to encode local conflict snapshot", "error", err)
		return
	}
	resolvedData, err := models.Encode(res.Resolved)
	if err != nil {
		s.logger.Error("failed to encode resolved entity", "error", err)
		return
	}

	record := wire.ConflictResolved{
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Conflict: wire.SyncConflict{
			EntityID:      ev.EntityID,
			LocalVersion:  localData,
			RemoteVersion: ev.Data,
			DetectedAt:    detectedAt,
			ConflictKind:  wire.ConflictConcurrentUpdate,
		},
		Resolution: wire.Resolution{
			ResolvedData: resolvedData,
			StrategyUsed: res.Strategy,
			Metadata:     res.Metadata,
		},
		SourceReplicaID: s.replicaID,
		Timestamp:       wire.Now(),
	}
	s.publish(context.Background(), wire.TopicConflictResolved, record)
}

// publish сериализует запись и публикует ее, логируя сбои вместо
// возврата ошибки: сбой шины не должен ронять вызывающего.
func (s *Store) publish(ctx context.Context, topic string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := s.channel.Publish(ctx, topic, payload); err != nil {
		s.logger.Error("failed to publish event", "topic", topic, "error", err)
	}
}
