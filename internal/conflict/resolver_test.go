package conflict

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/pkg/wire"
)

func newTestResolver() *DefaultResolver {
	return NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolve_WorkflowMerge(t *testing.T) {
	r := newTestResolver()

	local := &models.Workflow{
		ID:       "w1",
		Steps:    []models.WorkflowStep{{ID: "s1", Status: models.StepStatusRunning}},
		Progress: 0,
	}
	remote := &models.Workflow{
		ID:       "w1",
		Steps:    []models.WorkflowStep{{ID: "s1", Status: models.StepStatusCompleted}},
		Progress: 50,
	}

	res := r.Resolve(Conflict{
		Local:      local,
		Remote:     remote,
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: models.EntityTypeWorkflow,
		EntityID:   "w1",
	})

	require.Equal(t, wire.StrategyWorkflowMerge, res.Strategy)

	merged, ok := res.Resolved.(*models.Workflow)
	require.True(t, ok)

	assert.Equal(t, float64(50), merged.Progress, "progress takes the maximum")
	require.Len(t, merged.Steps, 1)
	assert.Equal(t, models.StepStatusCompleted, merged.Steps[0].Status, "completed wins over running")
}

func TestResolve_WorkflowMerge_StepUnion(t *testing.T) {
	r := newTestResolver()

	earlier := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	local := &models.Workflow{
		ID:        "w1",
		Name:      "report",
		StartTime: &later,
		Steps: []models.WorkflowStep{
			{ID: "s1", Status: models.StepStatusCompleted},
			{ID: "s2", Status: models.StepStatusRunning, StartTime: &later},
		},
	}
	remote := &models.Workflow{
		ID:        "w1",
		Name:      "report v2",
		StartTime: &earlier,
		EndTime:   &later,
		Steps: []models.WorkflowStep{
			{ID: "s2", Status: models.StepStatusRunning, StartTime: &earlier},
			{ID: "s3", Status: models.StepStatusPending},
		},
	}

	res := r.Resolve(Conflict{
		Local:      local,
		Remote:     remote,
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: models.EntityTypeWorkflow,
		EntityID:   "w1",
	})

	merged, ok := res.Resolved.(*models.Workflow)
	require.True(t, ok)

	// Локальные шаги первыми, новые удаленные после
	require.Len(t, merged.Steps, 3)
	assert.Equal(t, "s1", merged.Steps[0].ID)
	assert.Equal(t, "s2", merged.Steps[1].ID)
	assert.Equal(t, "s3", merged.Steps[2].ID)

	// s2: оба running, локальный стартовал позже - он и побеждает
	assert.Equal(t, later, *merged.Steps[1].StartTime)

	assert.Equal(t, "report v2", merged.Name, "non-empty remote name wins")
	assert.Equal(t, earlier, *merged.StartTime, "earlier start wins")
	assert.Equal(t, later, *merged.EndTime)
}

func TestResolve_MeetingAnalysisMerge(t *testing.T) {
	r := newTestResolver()

	local := &models.MeetingAnalysis{
		ID:      "m1",
		Summary: "short",
		ActionItems: []models.ActionItem{
			{Description: "Send deck", Status: models.ActionItemCompleted},
		},
		Participants: []models.Participant{{ID: "u1", Name: "Alice"}},
	}
	remote := &models.MeetingAnalysis{
		ID:      "m1",
		Summary: "a much longer summary",
		ActionItems: []models.ActionItem{
			{Description: "send deck ", Status: models.ActionItemPending},
			{Description: "Book room", Status: models.ActionItemPending},
		},
		Participants: []models.Participant{
			{ID: "u1", Name: "Alice"},
			{ID: "u2", Name: "Bob"},
		},
	}

	res := r.Resolve(Conflict{
		Local:      local,
		Remote:     remote,
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: models.EntityTypeMeetingAnalysis,
		EntityID:   "m1",
	})

	require.Equal(t, wire.StrategyMeetingAnalysisMerge, res.Strategy)

	merged, ok := res.Resolved.(*models.MeetingAnalysis)
	require.True(t, ok)

	assert.Equal(t, "a much longer summary", merged.Summary, "longer summary wins")

	// "Send deck" и "send deck " - один пункт; completed сохраняется
	require.Len(t, merged.ActionItems, 2)
	assert.Equal(t, "Send deck", merged.ActionItems[0].Description)
	assert.Equal(t, models.ActionItemCompleted, merged.ActionItems[0].Status)
	assert.Equal(t, "Book room", merged.ActionItems[1].Description)

	require.Len(t, merged.Participants, 2)
}

func TestResolve_UnknownEntityType_LastWriterWins(t *testing.T) {
	r := newTestResolver()

	local := &models.GenericEntity{Type: "dashboard", Fields: map[string]any{"v": float64(1)}}
	remote := &models.GenericEntity{Type: "dashboard", Fields: map[string]any{"v": float64(2)}}

	res := r.Resolve(Conflict{
		Local:      local,
		Remote:     remote,
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: "dashboard",
		EntityID:   "d1",
	})

	assert.Equal(t, wire.StrategyLastWriterWins, res.Strategy)
	assert.Empty(t, cmp.Diff(remote, res.Resolved), "remote version should win as-is")
}

func TestResolve_KindStrategies(t *testing.T) {
	tests := []struct {
		name         string
		kind         string
		wantStrategy string
	}{
		{"version mismatch", wire.ConflictVersionMismatch, wire.StrategyVersionMismatchRecovery},
		{"data corruption", wire.ConflictDataCorruption, wire.StrategyCorruptionRecovery},
		{"unknown kind", "something_new", wire.StrategyLastWriterWins},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver()

			remote := &models.Workflow{ID: "w1", Progress: 50}
			res := r.Resolve(Conflict{
				Local:      &models.Workflow{ID: "w1"},
				Remote:     remote,
				Kind:       tt.kind,
				EntityType: models.EntityTypeWorkflow,
				EntityID:   "w1",
			})

			assert.Equal(t, tt.wantStrategy, res.Strategy)
			assert.Empty(t, cmp.Diff(remote, res.Resolved))
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver()

	c := Conflict{
		Local: &models.Workflow{
			ID:       "w1",
			Steps:    []models.WorkflowStep{{ID: "s1", Status: models.StepStatusRunning}},
			Progress: 10,
		},
		Remote: &models.Workflow{
			ID:       "w1",
			Steps:    []models.WorkflowStep{{ID: "s2", Status: models.StepStatusPending}},
			Progress: 20,
		},
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: models.EntityTypeWorkflow,
		EntityID:   "w1",
	}

	first := r.Resolve(c)
	second := r.Resolve(c)

	assert.Empty(t, cmp.Diff(first.Resolved, second.Resolved),
		"same inputs must produce the same merged entity")
	assert.Equal(t, first.Strategy, second.Strategy)
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	r := newTestResolver()

	local := &models.Workflow{
		ID:       "w1",
		Steps:    []models.WorkflowStep{{ID: "s1", Status: models.StepStatusRunning}},
		Progress: 10,
	}
	remote := &models.Workflow{
		ID:       "w1",
		Steps:    []models.WorkflowStep{{ID: "s1", Status: models.StepStatusCompleted}},
		Progress: 20,
	}
	localCopy := local.Clone()
	remoteCopy := remote.Clone()

	r.Resolve(Conflict{
		Local:      local,
		Remote:     remote,
		Kind:       wire.ConflictConcurrentUpdate,
		EntityType: models.EntityTypeWorkflow,
		EntityID:   "w1",
	})

	assert.Empty(t, cmp.Diff(localCopy, models.Entity(local)))
	assert.Empty(t, cmp.Diff(remoteCopy, models.Entity(remote)))
}

func TestResolvedCount(t *testing.T) {
	r := newTestResolver()
	require.Zero(t, r.ResolvedCount())

	for range 3 {
		r.Resolve(Conflict{
			Local:      &models.Workflow{ID: "w1"},
			Remote:     &models.Workflow{ID: "w1"},
			Kind:       wire.ConflictConcurrentUpdate,
			EntityType: models.EntityTypeWorkflow,
			EntityID:   "w1",
		})
	}

	assert.Equal(t, int64(3), r.ResolvedCount())
}
