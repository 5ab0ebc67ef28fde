package models

import "time"

// StepStatus константы для статусов шагов workflow
const (
	StepStatusPending   = "pending"
	StepStatusRunning   = "running"
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
)

// Workflow представляет реплицируемое состояние одного workflow.
// Имена json-полей — часть контракта шины, менять нельзя.
type Workflow struct {
	StartTime *time.Time     `json:"startTime,omitempty"` // StartTime время запуска workflow
	EndTime   *time.Time     `json:"endTime,omitempty"`   // EndTime время завершения (если завершен)
	ID        string         `json:"id"`                  // ID уникальный идентификатор workflow
	Name      string         `json:"name,omitempty"`      // Name человекочитаемое имя
	Steps     []WorkflowStep `json:"steps"`               // Steps упорядоченный список шагов
	Progress  float64        `json:"progress"`            // Progress общий прогресс 0..100
}

// WorkflowStep представляет один шаг workflow.
type WorkflowStep struct {
	StartTime *time.Time `json:"startTime,omitempty"` // StartTime время запуска шага
	EndTime   *time.Time `json:"endTime,omitempty"`   // EndTime время завершения шага
	ID        string     `json:"id"`                  // ID уникальный идентификатор шага
	Name      string     `json:"name,omitempty"`      // Name человекочитаемое имя
	Status    string     `json:"status"`              // Status статус: pending|running|completed|failed
}

// EntityType возвращает тип сущности.
func (w *Workflow) EntityType() string { return EntityTypeWorkflow }

// Clone создает глубокую копию workflow.
func (w *Workflow) Clone() Entity {
	clone := *w
	clone.StartTime = cloneTime(w.StartTime)
	clone.EndTime = cloneTime(w.EndTime)
	clone.Steps = make([]WorkflowStep, len(w.Steps))
	for i, s := range w.Steps {
		clone.Steps[i] = s
		clone.Steps[i].StartTime = cloneTime(s.StartTime)
		clone.Steps[i].EndTime = cloneTime(s.EndTime)
	}
	return &clone
}

// Step возвращает указатель на шаг с заданным id или nil.
func (w *Workflow) Step(stepID string) *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].ID == stepID {
			return &w.Steps[i]
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
