package conflict

import "github.com/iudanet/statesync/internal/models"

// mergeMeetingAnalyses сливает две конфликтующие версии анализа встречи:
//   - пункты действий дедуплицируются по описанию (без регистра и
//     окружающих пробелов), completed побеждает pending;
//   - участники объединяются по id;
//   - из двух резюме остается более длинное.
func mergeMeetingAnalyses(local, remote *models.MeetingAnalysis) *models.MeetingAnalysis {
	merged := &models.MeetingAnalysis{
		ID:      local.ID,
		Title:   local.Title,
		Summary: local.Summary,
	}
	if remote.Title != "" {
		merged.Title = remote.Title
	}
	if len(remote.Summary) > len(local.Summary) {
		merged.Summary = remote.Summary
	}

	merged.ActionItems = mergeActionItems(local.ActionItems, remote.ActionItems)
	merged.Participants = mergeParticipants(local.Participants, remote.Participants)

	return merged
}

// mergeActionItems объединяет пункты действий по ключу описания.
// Порядок: локальные пункты, затем новые удаленные.
func mergeActionItems(local, remote []models.ActionItem) []models.ActionItem {
	remoteByKey := make(map[string]models.ActionItem, len(remote))
	for _, item := range remote {
		remoteByKey[item.Key()] = item
	}

	merged := make([]models.ActionItem, 0, len(local))
	seen := make(map[string]bool, len(local))

	for _, li := range local {
		key := li.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if ri, ok := remoteByKey[key]; ok {
			merged = append(merged, pickActionItem(li, ri))
		} else {
			merged = append(merged, li)
		}
	}

	for _, ri := range remote {
		if !seen[ri.Key()] {
			seen[ri.Key()] = true
			merged = append(merged, ri)
		}
	}

	return merged
}

// pickActionItem выбирает один из двух дубликатов пункта:
// completed побеждает, при равенстве статусов побеждает remote.
func pickActionItem(local, remote models.ActionItem) models.ActionItem {
	if local.Status == models.ActionItemCompleted && remote.Status != models.ActionItemCompleted {
		return local
	}
	return remote
}

// mergeParticipants объединяет участников по id (union без дубликатов).
func mergeParticipants(local, remote []models.Participant) []models.Participant {
	merged := make([]models.Participant, 0, len(local)+len(remote))
	seen := make(map[string]bool, len(local))

	for _, p := range local {
		if !seen[p.ID] {
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	for _, p := range remote {
		if !seen[p.ID] {
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	return merged
}
