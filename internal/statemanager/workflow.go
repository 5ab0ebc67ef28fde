// Package statemanager содержит типизированные фасады над statestore:
// доменные операции над workflow и анализами встреч.
//
// Фасады работают по схеме read-modify-write через родительскую
// сущность: частичное изменение (один шаг workflow) читает целую
// сущность, меняет ее и записывает целиком через Set. Две реплики,
// конкурентно меняющие разные шаги одного workflow, получат конфликт
// целой сущности, который сольется по правилам мержа workflow.
package statemanager

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/statestore"
)

// WorkflowManager типизированный фасад для workflow-сущностей.
type WorkflowManager struct {
	store  *statestore.Store
	logger *slog.Logger
}

// NewWorkflowManager создает новый WorkflowManager.
func NewWorkflowManager(store *statestore.Store, logger *slog.Logger) *WorkflowManager {
	return &WorkflowManager{store: store, logger: logger}
}

// Get возвращает локальную копию workflow или nil.
func (m *WorkflowManager) Get(ctx context.Context, workflowID string) (*models.Workflow, error) {
	e, err := m.store.Get(ctx, models.EntityTypeWorkflow, workflowID)
	if err != nil || e == nil {
		return nil, err
	}

	w, ok := e.(*models.Workflow)
	if !ok {
		m.logger.Warn("entity stored under workflow type is not a workflow",
			"workflow_id", workflowID)
		return nil, nil
	}
	return w, nil
}

// Save записывает workflow целиком.
func (m *WorkflowManager) Save(ctx context.Context, w *models.Workflow, correlationID ...string) error {
	return m.store.Set(ctx, models.EntityTypeWorkflow, w.ID, w, correlationID...)
}

// StepPatch частичное обновление шага: применяются только заданные поля.
type StepPatch struct {
	Name      *string
	Status    *string
	StartTime *time.Time
	EndTime   *time.Time
}

// UpdateStep применяет patch к одному шагу workflow и записывает
// workflow целиком. Если workflow или шаг не найдены локально — тихий
// no-op без ошибки.
func (m *WorkflowManager) UpdateStep(ctx context.Context, workflowID, stepID string, patch StepPatch) error {
	w, err := m.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if w == nil {
		m.logger.Debug("workflow not found for step update",
			"workflow_id", workflowID, "step_id", stepID)
		return nil
	}

	step := w.Step(stepID)
	if step == nil {
		m.logger.Debug("step not found for update",
			"workflow_id", workflowID, "step_id", stepID)
		return nil
	}

	patch.apply(step)

	return m.Save(ctx, w)
}

// SetProgress обновляет общий прогресс workflow. Тихий no-op, если
// workflow не найден локально.
func (m *WorkflowManager) SetProgress(ctx context.Context, workflowID string, progress float64) error {
	w, err := m.Get(ctx, workflowID)
	if err != nil || w == nil {
		return err
	}

	w.Progress = progress

	return m.Save(ctx, w)
}

// apply накладывает заданные поля patch на шаг (shallow merge).
func (p StepPatch) apply(s *models.WorkflowStep) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.StartTime != nil {
		s.StartTime = p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = p.EndTime
	}
}
