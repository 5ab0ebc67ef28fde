package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Workflow(t *testing.T) {
	raw := json.RawMessage(`{"id":"w1","name":"report","steps":[{"id":"s1","status":"running"}],"progress":25}`)

	e, err := Decode(EntityTypeWorkflow, raw)
	require.NoError(t, err)

	w, ok := e.(*Workflow)
	require.True(t, ok, "decoded entity should be *Workflow")

	assert.Equal(t, "w1", w.ID)
	assert.Equal(t, "report", w.Name)
	assert.Equal(t, float64(25), w.Progress)
	require.Len(t, w.Steps, 1)
	assert.Equal(t, StepStatusRunning, w.Steps[0].Status)
	assert.Equal(t, EntityTypeWorkflow, w.EntityType())
}

func TestDecode_MeetingAnalysis(t *testing.T) {
	raw := json.RawMessage(`{"id":"m1","summary":"short","actionItems":[{"description":"Send deck","status":"pending"}],"participants":[{"id":"u1"}]}`)

	e, err := Decode(EntityTypeMeetingAnalysis, raw)
	require.NoError(t, err)

	m, ok := e.(*MeetingAnalysis)
	require.True(t, ok, "decoded entity should be *MeetingAnalysis")

	assert.Equal(t, "m1", m.ID)
	require.Len(t, m.ActionItems, 1)
	assert.Equal(t, ActionItemPending, m.ActionItems[0].Status)
	require.Len(t, m.Participants, 1)
	assert.Equal(t, EntityTypeMeetingAnalysis, m.EntityType())
}

func TestDecode_UnknownType(t *testing.T) {
	raw := json.RawMessage(`{"id":"d1","title":"dashboard","widgets":[1,2,3]}`)

	e, err := Decode("dashboard", raw)
	require.NoError(t, err)

	g, ok := e.(*GenericEntity)
	require.True(t, ok, "unknown type should decode to *GenericEntity")

	assert.Equal(t, "dashboard", g.EntityType())
	assert.Equal(t, "d1", g.Fields["id"])
	assert.Len(t, g.Fields["widgets"], 3)
}

func TestDecode_MalformedData(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		raw        string
	}{
		{"workflow not an object", EntityTypeWorkflow, `"just a string"`},
		{"meeting analysis broken json", EntityTypeMeetingAnalysis, `{"id":`},
		{"generic not an object", "dashboard", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.entityType, json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestEncode_Workflow_WireFieldNames(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	w := &Workflow{
		ID:        "w1",
		Steps:     []WorkflowStep{{ID: "s1", Status: StepStatusCompleted, StartTime: &started}},
		Progress:  50,
		StartTime: &started,
	}

	data, err := Encode(w)
	require.NoError(t, err)

	// Имена полей - контракт шины
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "steps")
	assert.Contains(t, fields, "progress")
	assert.Contains(t, fields, "startTime")
	assert.NotContains(t, fields, "endTime", "unset optional fields must be omitted")
}

func TestEncode_Decode_RoundTrip(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	original := &Workflow{
		ID:   "w1",
		Name: "report",
		Steps: []WorkflowStep{
			{ID: "s1", Status: StepStatusCompleted, StartTime: &started},
			{ID: "s2", Status: StepStatusPending},
		},
		Progress:  75,
		StartTime: &started,
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(EntityTypeWorkflow, data)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(original, decoded))
}

func TestWorkflow_Clone_Independent(t *testing.T) {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	original := &Workflow{
		ID:        "w1",
		Steps:     []WorkflowStep{{ID: "s1", Status: StepStatusRunning}},
		StartTime: &started,
	}

	clone := original.Clone().(*Workflow)
	clone.Steps[0].Status = StepStatusCompleted
	*clone.StartTime = clone.StartTime.Add(time.Hour)

	assert.Equal(t, StepStatusRunning, original.Steps[0].Status, "clone must not share steps")
	assert.Equal(t, started, *original.StartTime, "clone must not share time pointers")
}

func TestWorkflow_Step(t *testing.T) {
	w := &Workflow{
		ID: "w1",
		Steps: []WorkflowStep{
			{ID: "s1", Status: StepStatusCompleted},
			{ID: "s2", Status: StepStatusRunning},
		},
	}

	require.NotNil(t, w.Step("s2"))
	assert.Equal(t, "s2", w.Step("s2").ID)
	assert.Nil(t, w.Step("missing"))

	// Указатель смотрит в сам workflow, не в копию
	w.Step("s2").Status = StepStatusCompleted
	assert.Equal(t, StepStatusCompleted, w.Steps[1].Status)
}

func TestMeetingAnalysis_Clone_Independent(t *testing.T) {
	original := &MeetingAnalysis{
		ID:           "m1",
		ActionItems:  []ActionItem{{Description: "Send deck", Status: ActionItemPending}},
		Participants: []Participant{{ID: "u1"}},
	}

	clone := original.Clone().(*MeetingAnalysis)
	clone.ActionItems[0].Status = ActionItemCompleted
	clone.Participants[0].Name = "Alice"

	assert.Equal(t, ActionItemPending, original.ActionItems[0].Status)
	assert.Empty(t, original.Participants[0].Name)
}

func TestActionItem_Key(t *testing.T) {
	tests := []struct {
		name     string
		a        ActionItem
		b        ActionItem
		sameKey  bool
	}{
		{"case insensitive", ActionItem{Description: "Send deck"}, ActionItem{Description: "send DECK"}, true},
		{"trims whitespace", ActionItem{Description: "send deck "}, ActionItem{Description: "send deck"}, true},
		{"different text", ActionItem{Description: "send deck"}, ActionItem{Description: "send invoice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sameKey, tt.a.Key() == tt.b.Key())
		})
	}
}

func TestGenericEntity_Clone_Independent(t *testing.T) {
	original := &GenericEntity{
		Type: "dashboard",
		Fields: map[string]any{
			"id":     "d1",
			"nested": map[string]any{"count": float64(1)},
		},
	}

	clone := original.Clone().(*GenericEntity)
	clone.Fields["nested"].(map[string]any)["count"] = float64(99)

	assert.Equal(t, float64(1), original.Fields["nested"].(map[string]any)["count"],
		"clone must deep-copy nested objects")
}
