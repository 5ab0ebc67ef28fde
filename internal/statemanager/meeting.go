package statemanager

import (
	"context"
	"log/slog"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/statestore"
)

// MeetingAnalysisManager типизированный фасад для анализов встреч.
type MeetingAnalysisManager struct {
	store  *statestore.Store
	logger *slog.Logger
}

// NewMeetingAnalysisManager создает новый MeetingAnalysisManager.
func NewMeetingAnalysisManager(store *statestore.Store, logger *slog.Logger) *MeetingAnalysisManager {
	return &MeetingAnalysisManager{store: store, logger: logger}
}

// Get возвращает локальную копию анализа встречи или nil.
func (m *MeetingAnalysisManager) Get(ctx context.Context, analysisID string) (*models.MeetingAnalysis, error) {
	e, err := m.store.Get(ctx, models.EntityTypeMeetingAnalysis, analysisID)
	if err != nil || e == nil {
		return nil, err
	}

	analysis, ok := e.(*models.MeetingAnalysis)
	if !ok {
		m.logger.Warn("entity stored under meeting analysis type is not a meeting analysis",
			"analysis_id", analysisID)
		return nil, nil
	}
	return analysis, nil
}

// Save записывает анализ встречи целиком.
func (m *MeetingAnalysisManager) Save(ctx context.Context, analysis *models.MeetingAnalysis, correlationID ...string) error {
	return m.store.Set(ctx, models.EntityTypeMeetingAnalysis, analysis.ID, analysis, correlationID...)
}

// UpsertActionItem добавляет пункт действий или заменяет существующий с
// тем же ключом описания. Тихий no-op, если анализ не найден локально.
func (m *MeetingAnalysisManager) UpsertActionItem(ctx context.Context, analysisID string, item models.ActionItem) error {
	analysis, err := m.Get(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis == nil {
		m.logger.Debug("meeting analysis not found for action item upsert",
			"analysis_id", analysisID)
		return nil
	}

	replaced := false
	for i := range analysis.ActionItems {
		if analysis.ActionItems[i].Key() == item.Key() {
			analysis.ActionItems[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		analysis.ActionItems = append(analysis.ActionItems, item)
	}

	return m.Save(ctx, analysis)
}

// AddParticipant добавляет участника, если его еще нет. Тихий no-op,
// если анализ не найден локально или участник уже есть.
func (m *MeetingAnalysisManager) AddParticipant(ctx context.Context, analysisID string, participant models.Participant) error {
	analysis, err := m.Get(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis == nil {
		m.logger.Debug("meeting analysis not found for participant add",
			"analysis_id", analysisID)
		return nil
	}

	for _, p := range analysis.Participants {
		if p.ID == participant.ID {
			return nil
		}
	}
	analysis.Participants = append(analysis.Participants, participant)

	return m.Save(ctx, analysis)
}
