package statemanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/statesync/internal/models"
)

func TestMeetingAnalysisManager_SaveAndGet(t *testing.T) {
	m := NewMeetingAnalysisManager(newTestStore(t), discardLogger())
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, &models.MeetingAnalysis{
		ID:      "m1",
		Title:   "standup",
		Summary: "short one",
	}))

	got, err := m.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "standup", got.Title)

	missing, err := m.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMeetingAnalysisManager_UpsertActionItem(t *testing.T) {
	m := NewMeetingAnalysisManager(newTestStore(t), discardLogger())
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, &models.MeetingAnalysis{
		ID: "m1",
		ActionItems: []models.ActionItem{
			{Description: "Send deck", Status: models.ActionItemPending, Assignee: "alice"},
		},
	}))

	// Новый пункт добавляется
	require.NoError(t, m.UpsertActionItem(ctx, "m1", models.ActionItem{
		Description: "Book room",
		Status:      models.ActionItemPending,
	}))

	// Пункт с тем же ключом (регистр и пробелы не значимы) заменяется
	require.NoError(t, m.UpsertActionItem(ctx, "m1", models.ActionItem{
		Description: "send deck ",
		Status:      models.ActionItemCompleted,
		Assignee:    "bob",
	}))

	got, err := m.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.Len(t, got.ActionItems, 2)
	assert.Equal(t, models.ActionItemCompleted, got.ActionItems[0].Status)
	assert.Equal(t, "bob", got.ActionItems[0].Assignee)
	assert.Equal(t, "Book room", got.ActionItems[1].Description)
}

func TestMeetingAnalysisManager_UpsertActionItem_MissingAnalysis(t *testing.T) {
	m := NewMeetingAnalysisManager(newTestStore(t), discardLogger())

	err := m.UpsertActionItem(context.Background(), "missing", models.ActionItem{
		Description: "Send deck",
	})
	require.NoError(t, err, "missing analysis is a silent no-op")
}

func TestMeetingAnalysisManager_AddParticipant(t *testing.T) {
	store := newTestStore(t)
	m := NewMeetingAnalysisManager(store, discardLogger())
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, &models.MeetingAnalysis{
		ID:           "m1",
		Participants: []models.Participant{{ID: "u1", Name: "Alice"}},
	}))

	require.NoError(t, m.AddParticipant(ctx, "m1", models.Participant{ID: "u2", Name: "Bob"}))

	got, err := m.Get(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)

	// Повтор того же участника не порождает дубликата и новой ревизии
	vvBefore := store.VersionVector(models.EntityTypeMeetingAnalysis, "m1")
	require.NoError(t, m.AddParticipant(ctx, "m1", models.Participant{ID: "u2", Name: "Bob"}))

	got, err = m.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)
	assert.True(t, vvBefore.Equal(store.VersionVector(models.EntityTypeMeetingAnalysis, "m1")))
}
