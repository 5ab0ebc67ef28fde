package models

import (
	"encoding/json"
	"fmt"
)

// EntityType константы для типов реплицируемых сущностей
const (
	EntityTypeWorkflow        = "workflow"
	EntityTypeMeetingAnalysis = "meeting_analysis"
)

// Entity представляет одну реплицируемую сущность. Закрытое множество
// вариантов (Workflow, MeetingAnalysis, GenericEntity), диспетчеризация
// по entityType — см. Decode.
type Entity interface {
	// EntityType возвращает строковый тип сущности ("workflow", ...)
	EntityType() string

	// Clone создает глубокую копию сущности
	Clone() Entity
}

// GenericEntity представляет сущность неизвестного типа: непрозрачный
// JSON-объект. Для таких сущностей конфликт всегда разрешается по
// правилу last-writer-wins.
type GenericEntity struct {
	Type   string         `json:"-"`
	Fields map[string]any `json:"-"`
}

// EntityType возвращает тип сущности.
func (e *GenericEntity) EntityType() string { return e.Type }

// Clone создает глубокую копию сущности.
func (e *GenericEntity) Clone() Entity {
	clone := &GenericEntity{Type: e.Type}
	if e.Fields != nil {
		clone.Fields = cloneValue(e.Fields).(map[string]any)
	}
	return clone
}

// MarshalJSON сериализует только поля (тип передается отдельно в событии).
func (e *GenericEntity) MarshalJSON() ([]byte, error) {
	if e.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Fields)
}

// UnmarshalJSON десериализует произвольный JSON-объект.
func (e *GenericEntity) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &e.Fields)
}

// Decode разбирает сырой JSON сущности в типизированный вариант по
// entityType. Неизвестные типы становятся GenericEntity.
func Decode(entityType string, data json.RawMessage) (Entity, error) {
	switch entityType {
	case EntityTypeWorkflow:
		w := &Workflow{}
		if err := json.Unmarshal(data, w); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
		}
		return w, nil
	case EntityTypeMeetingAnalysis:
		m := &MeetingAnalysis{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meeting analysis: %w", err)
		}
		return m, nil
	default:
		g := &GenericEntity{Type: entityType}
		if err := json.Unmarshal(data, g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity %q: %w", entityType, err)
		}
		return g, nil
	}
}

// Encode сериализует сущность в сырой JSON для передачи на шину.
func Encode(e Entity) (json.RawMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// cloneValue рекурсивно копирует значения, которые появляются после
// json.Unmarshal в map[string]any (объекты, массивы, скаляры).
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
