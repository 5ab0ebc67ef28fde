// Package conflict реализует детерминированное разрешение конфликтов
// между локальной и удаленной версиями одной сущности.
//
// Резолвер чистый: при одинаковых входах всегда возвращает одинаковый
// результат и никогда не возвращает ошибку — для типа сущности без
// собственной логики слияния применяется last-writer-wins.
package conflict

import (
	"log/slog"
	"sync/atomic"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/pkg/wire"
)

// Conflict описывает обнаруженный конфликт: снимки обеих версий сущности
// и вид конфликта (wire.Conflict*).
type Conflict struct {
	Local      models.Entity
	Remote     models.Entity
	Kind       string
	EntityType string
	EntityID   string
}

// Resolution результат слияния: ровно одна сущность и метка стратегии.
type Resolution struct {
	Resolved models.Entity
	Metadata map[string]any
	Strategy string
}

// Resolver разрешает конфликты между двумя версиями сущности.
type Resolver interface {
	// Resolve производит одну слитую сущность. Не возвращает ошибок:
	// неизвестные типы и виды конфликтов деградируют до last-writer-wins.
	Resolve(c Conflict) Resolution
}

// DefaultResolver стандартная реализация Resolver с мержем по типу
// сущности и счетчиком разрешенных конфликтов для мониторинга.
type DefaultResolver struct {
	logger   *slog.Logger
	resolved atomic.Int64
}

// NewResolver создает новый DefaultResolver.
func NewResolver(logger *slog.Logger) *DefaultResolver {
	return &DefaultResolver{logger: logger}
}

// Resolve разрешает конфликт согласно виду конфликта и типу сущности.
func (r *DefaultResolver) Resolve(c Conflict) Resolution {
	r.resolved.Add(1)

	var res Resolution

	switch c.Kind {
	case wire.ConflictConcurrentUpdate:
		res = r.resolveConcurrent(c)
	case wire.ConflictVersionMismatch:
		res = lastWriterWins(c, wire.StrategyVersionMismatchRecovery)
	case wire.ConflictDataCorruption:
		res = lastWriterWins(c, wire.StrategyCorruptionRecovery)
	default:
		res = lastWriterWins(c, wire.StrategyLastWriterWins)
	}

	r.logger.Info("conflict resolved",
		"entity_type", c.EntityType,
		"entity_id", c.EntityID,
		"conflict_kind", c.Kind,
		"strategy", res.Strategy,
	)

	return res
}

// ResolvedCount возвращает количество разрешенных конфликтов за время
// жизни резолвера.
func (r *DefaultResolver) ResolvedCount() int64 {
	return r.resolved.Load()
}

// resolveConcurrent диспетчеризует concurrent_update по типу сущности.
func (r *DefaultResolver) resolveConcurrent(c Conflict) Resolution {
	switch local := c.Local.(type) {
	case *models.Workflow:
		if remote, ok := c.Remote.(*models.Workflow); ok {
			return Resolution{
				Resolved: mergeWorkflows(local, remote),
				Strategy: wire.StrategyWorkflowMerge,
				Metadata: map[string]any{
					"localSteps":  len(local.Steps),
					"remoteSteps": len(remote.Steps),
				},
			}
		}
	case *models.MeetingAnalysis:
		if remote, ok := c.Remote.(*models.MeetingAnalysis); ok {
			return Resolution{
				Resolved: mergeMeetingAnalyses(local, remote),
				Strategy: wire.StrategyMeetingAnalysisMerge,
				Metadata: map[string]any{
					"localActionItems":  len(local.ActionItems),
					"remoteActionItems": len(remote.ActionItems),
				},
			}
		}
	}

	// Нет логики слияния для этого типа - remote побеждает
	return lastWriterWins(c, wire.StrategyLastWriterWins)
}

// lastWriterWins принимает удаленную версию без слияния.
func lastWriterWins(c Conflict, strategy string) Resolution {
	return Resolution{
		Resolved: c.Remote.Clone(),
		Strategy: strategy,
	}
}
