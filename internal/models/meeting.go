package models

import "strings"

// ActionItemStatus константы для статусов пунктов действий
const (
	ActionItemPending   = "pending"
	ActionItemCompleted = "completed"
)

// MeetingAnalysis представляет реплицируемый результат анализа встречи.
type MeetingAnalysis struct {
	ID           string        `json:"id"`                     // ID уникальный идентификатор анализа
	Title        string        `json:"title,omitempty"`        // Title название встречи
	Summary      string        `json:"summary,omitempty"`      // Summary текстовое резюме встречи
	ActionItems  []ActionItem  `json:"actionItems"`            // ActionItems список пунктов действий
	Participants []Participant `json:"participants,omitempty"` // Participants участники встречи
}

// ActionItem представляет один пункт действий из анализа встречи.
type ActionItem struct {
	Description string `json:"description"`        // Description текст пункта
	Status      string `json:"status"`             // Status статус: pending|completed
	Assignee    string `json:"assignee,omitempty"` // Assignee ответственный
}

// Participant представляет участника встречи.
type Participant struct {
	ID   string `json:"id"`             // ID уникальный идентификатор участника
	Name string `json:"name,omitempty"` // Name отображаемое имя
}

// EntityType возвращает тип сущности.
func (m *MeetingAnalysis) EntityType() string { return EntityTypeMeetingAnalysis }

// Clone создает глубокую копию анализа встречи.
func (m *MeetingAnalysis) Clone() Entity {
	clone := *m
	clone.ActionItems = append([]ActionItem(nil), m.ActionItems...)
	clone.Participants = append([]Participant(nil), m.Participants...)
	return &clone
}

// Key возвращает ключ дедупликации пункта действий: описание без
// регистра и окружающих пробелов.
func (a ActionItem) Key() string {
	return strings.ToLower(strings.TrimSpace(a.Description))
}
