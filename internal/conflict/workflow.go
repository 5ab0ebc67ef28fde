package conflict

import (
	"time"

	"github.com/iudanet/statesync/internal/models"
)

// mergeWorkflows сливает две конфликтующие версии workflow:
//   - шаги объединяются по id: completed побеждает любой другой статус,
//     иначе побеждает шаг с более поздним временем запуска;
//   - progress = max(local, remote);
//   - startTime = более раннее из двух;
//   - endTime = более позднее, если заданы оба, иначе заданное.
func mergeWorkflows(local, remote *models.Workflow) *models.Workflow {
	merged := &models.Workflow{
		ID:        local.ID,
		Name:      local.Name,
		Progress:  max(local.Progress, remote.Progress),
		StartTime: earlierTime(local.StartTime, remote.StartTime),
		EndTime:   laterTime(local.EndTime, remote.EndTime),
	}
	if remote.Name != "" {
		merged.Name = remote.Name
	}

	merged.Steps = mergeSteps(local.Steps, remote.Steps)

	return merged
}

// mergeSteps объединяет списки шагов по id. Порядок: локальные шаги в
// исходном порядке, затем новые удаленные шаги в порядке их появления.
func mergeSteps(local, remote []models.WorkflowStep) []models.WorkflowStep {
	remoteByID := make(map[string]models.WorkflowStep, len(remote))
	for _, s := range remote {
		remoteByID[s.ID] = s
	}

	merged := make([]models.WorkflowStep, 0, len(local))
	seen := make(map[string]bool, len(local))

	for _, ls := range local {
		seen[ls.ID] = true
		if rs, ok := remoteByID[ls.ID]; ok {
			merged = append(merged, pickStep(ls, rs))
		} else {
			merged = append(merged, ls)
		}
	}

	for _, rs := range remote {
		if !seen[rs.ID] {
			merged = append(merged, rs)
		}
	}

	return merged
}

// pickStep выбирает одну из двух версий шага с одинаковым id.
func pickStep(local, remote models.WorkflowStep) models.WorkflowStep {
	localDone := local.Status == models.StepStatusCompleted
	remoteDone := remote.Status == models.StepStatusCompleted

	switch {
	case localDone && !remoteDone:
		return local
	case remoteDone && !localDone:
		return remote
	}

	// Оба completed или оба нет - побеждает более поздний запуск,
	// при равенстве remote (последний писатель)
	if timeOrZero(local.StartTime).After(timeOrZero(remote.StartTime)) {
		return local
	}
	return remote
}

// earlierTime возвращает более раннее из двух времен; nil, если оба nil.
func earlierTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Before(*b) {
		return a
	}
	return b
}

// laterTime возвращает более позднее из двух времен; заданное, если
// задано только одно; nil, если оба nil.
func laterTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.After(*b) {
		return a
	}
	return b
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
