package wire

import (
	"encoding/json"
	"time"
)

// ChangeType перечисляет виды мутаций, которые переносит StateChangeEvent.
const (
	ChangeTypeCreate = "create"
	ChangeTypeUpdate = "update"
	ChangeTypeDelete = "delete"
)

// ConflictKind перечисляет виды обнаруженных конфликтов.
const (
	ConflictConcurrentUpdate = "concurrent_update"
	ConflictVersionMismatch  = "version_mismatch"
	ConflictDataCorruption   = "data_corruption"
)

// Strategy labels reported in Resolution.StrategyUsed.
const (
	StrategyWorkflowMerge           = "workflow_merge"
	StrategyMeetingAnalysisMerge    = "meeting_analysis_merge"
	StrategyLastWriterWins          = "last_writer_wins"
	StrategyVersionMismatchRecovery = "version_mismatch_recovery"
	StrategyCorruptionRecovery      = "corruption_recovery"
)

// StateChangeEvent описывает одну мутацию сущности на шине.
// Имена полей фиксированы: это межъязыковой контракт, все реализации
// на одной шине обязаны сериализовать их одинаково.
type StateChangeEvent struct {
	ChangeType      string          `json:"changeType"`
	EntityType      string          `json:"entityType"`
	EntityID        string          `json:"entityId"`
	Data            json.RawMessage `json:"data,omitempty"`
	Timestamp       int64           `json:"timestamp"` // epoch milliseconds
	SourceReplicaID string          `json:"sourceReplicaId"`
	CorrelationID   string          `json:"correlationId,omitempty"`
}

// SyncRequest публикуется репликой, у которой нет локальной копии сущности.
type SyncRequest struct {
	EntityType          string `json:"entityType"`
	EntityID            string `json:"entityId"`
	RequestingReplicaID string `json:"requestingReplicaId"`
	Timestamp           int64  `json:"timestamp"`
}

// SyncResponse публикуется репликой, у которой сущность есть.
// TargetReplicaID адресует ответ: применяет его только запросившая реплика.
type SyncResponse struct {
	EntityType      string           `json:"entityType"`
	EntityID        string           `json:"entityId"`
	Data            json.RawMessage  `json:"data"`
	VersionVector   map[string]int64 `json:"versionVector"`
	TargetReplicaID string           `json:"targetReplicaId"`
	SourceReplicaID string           `json:"sourceReplicaId"`
	Timestamp       int64            `json:"timestamp"`
}

// SyncConflict фиксирует обнаруженный конфликт: снимки обеих версий
// сущности и вид конфликта.
type SyncConflict struct {
	EntityID      string          `json:"entityId"`
	LocalVersion  json.RawMessage `json:"localVersion"`
	RemoteVersion json.RawMessage `json:"remoteVersion"`
	DetectedAt    int64           `json:"detectedAt"`
	ConflictKind  string          `json:"conflictKind"`
}

// Resolution результат работы резолвера конфликтов.
type Resolution struct {
	ResolvedData json.RawMessage `json:"resolvedData"`
	StrategyUsed string          `json:"strategyUsed"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// ConflictResolved публикуется после применения резолюции,
// для наблюдателей (мониторинг, аудит).
type ConflictResolved struct {
	EntityType      string       `json:"entityType"`
	EntityID        string       `json:"entityId"`
	Conflict        SyncConflict `json:"conflict"`
	Resolution      Resolution   `json:"resolution"`
	SourceReplicaID string       `json:"sourceReplicaId"`
	Timestamp       int64        `json:"timestamp"`
}

// Now возвращает текущее время в миллисекундах epoch — формат Timestamp
// во всех записях на шине.
func Now() int64 {
	return time.Now().UnixMilli()
}
