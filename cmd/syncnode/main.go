package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/iudanet/statesync/internal/batch"
	"github.com/iudanet/statesync/internal/cache"
	"github.com/iudanet/statesync/internal/config"
	"github.com/iudanet/statesync/internal/conflict"
	"github.com/iudanet/statesync/internal/eventbus"
	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/resource"
	"github.com/iudanet/statesync/internal/statemanager"
	"github.com/iudanet/statesync/internal/statestore"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// serviceStateStore имя сервиса в resource.Manager, под которым лимитируются
// записи в хранилище состояния.
const serviceStateStore = "statestore"

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	if err := run(logger, cfg); err != nil {
		logger.Error("syncnode failed", "error", err)
		os.Exit(1)
	}
}

// run поднимает две реплики на одной внутрипроцессной шине и
// демонстрирует распространение изменений, слияние конфликта,
// батчирование записей, лимиты ресурсов, снапшот в кеш и подтягивание
// сущности по sync-запросу.
func run(logger *slog.Logger, cfg *config.Config) error {
	ctx := context.Background()

	bus := eventbus.New(logger)
	defer bus.Close()

	// Записи в хранилище идут под семафором и ограничителем частоты
	limits := resource.NewManager(logger)
	limits.Configure(serviceStateStore, resource.Limits{
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.RateLimitBurst,
	})

	// Двухуровневый кеш для снапшотов последнего известного состояния:
	// L2 переживает перезапуск узла
	snapshots, err := cache.NewManager(cfg.CacheL1Size, cfg.CachePath, cfg.CacheTTL, logger)
	if err != nil {
		return fmt.Errorf("failed to create snapshot cache: %w", err)
	}
	defer snapshots.Close()

	replicaAID := cfg.ReplicaID
	if replicaAID == "" {
		replicaAID = "replica-a"
	}

	resolverA := conflict.NewResolver(logger.With("replica", replicaAID))

	replicaA, err := statestore.New(bus, logger.With("replica", replicaAID),
		statestore.WithReplicaID(replicaAID),
		statestore.WithConflictWindow(cfg.ConflictWindow),
		statestore.WithResolver(resolverA),
	)
	if err != nil {
		return fmt.Errorf("failed to create replica %s: %w", replicaAID, err)
	}
	defer replicaA.Close()

	replicaB, err := statestore.New(bus, logger.With("replica", "replica-b"),
		statestore.WithReplicaID("replica-b"),
		statestore.WithConflictWindow(cfg.ConflictWindow),
	)
	if err != nil {
		return fmt.Errorf("failed to create replica b: %w", err)
	}
	defer replicaB.Close()

	workflowsA := statemanager.NewWorkflowManager(replicaA, logger)
	workflowsB := statemanager.NewWorkflowManager(replicaB, logger)

	// Реплика A создает workflow - он распространяется на B через шину
	started := time.Now()
	wf := &models.Workflow{
		ID:   "wf-1",
		Name: "quarterly-report",
		Steps: []models.WorkflowStep{
			{ID: "collect", Status: models.StepStatusCompleted},
			{ID: "analyze", Status: models.StepStatusRunning, StartTime: &started},
			{ID: "publish", Status: models.StepStatusPending},
		},
		Progress:  40,
		StartTime: &started,
	}

	release, err := limits.Acquire(ctx, serviceStateStore)
	if err != nil {
		return fmt.Errorf("failed to acquire statestore slot: %w", err)
	}
	err = workflowsA.Save(ctx, wf)
	release()
	if err != nil {
		return err
	}

	replicated, err := workflowsB.Get(ctx, "wf-1")
	if err != nil {
		return err
	}
	if replicated == nil {
		return fmt.Errorf("workflow wf-1 did not replicate to b")
	}
	logger.Info("workflow replicated to b", "steps", len(replicated.Steps))

	// Конкурентная запись: B завершает шаг, пока у A уже есть своя
	// копия - событие B попадает в окно конфликтов A и сливается
	completed := models.StepStatusCompleted
	if err := workflowsB.UpdateStep(ctx, "wf-1", "analyze", statemanager.StepPatch{
		Status: &completed,
	}); err != nil {
		return err
	}

	merged, err := workflowsA.Get(ctx, "wf-1")
	if err != nil {
		return err
	}
	if merged == nil || merged.Step("analyze") == nil {
		return fmt.Errorf("merged workflow wf-1 lost on a")
	}
	logger.Info("conflict merged on a",
		"analyze_status", merged.Step("analyze").Status,
		"resolved_total", resolverA.ResolvedCount(),
	)

	// Всплеск обновлений прогресса уходит батчами
	if err := batchProgressUpdates(ctx, logger, cfg, limits, workflowsA); err != nil {
		return err
	}

	// Снапшот слитого состояния в кеш: после рестарта узел начинает с
	// последней известной версии, не дожидаясь пиров
	final, err := workflowsA.Get(ctx, "wf-1")
	if err != nil {
		return err
	}
	if final == nil {
		return fmt.Errorf("workflow wf-1 lost on a after batch updates")
	}
	data, err := models.Encode(final)
	if err != nil {
		return err
	}
	if err := snapshots.Set(ctx, snapshotKey("wf-1"), data); err != nil {
		return err
	}

	restored, err := snapshots.Get(ctx, snapshotKey("wf-1"))
	if err != nil {
		return fmt.Errorf("failed to read back snapshot: %w", err)
	}
	logger.Info("snapshot persisted",
		"bytes", len(restored),
		"cache_hit_rate", snapshots.Stats().OverallHitRate,
	)

	// Поздно присоединившаяся реплика подтягивает сущность sync-запросом
	replicaC, err := statestore.New(bus, logger.With("replica", "replica-c"),
		statestore.WithReplicaID("replica-c"),
		statestore.WithConflictWindow(cfg.ConflictWindow),
	)
	if err != nil {
		return fmt.Errorf("failed to create replica c: %w", err)
	}
	defer replicaC.Close()

	pulled, err := replicaC.Get(ctx, models.EntityTypeWorkflow, "wf-1")
	if err != nil {
		return err
	}
	if pulled == nil {
		logger.Warn("replica c did not receive workflow yet")
	} else {
		logger.Info("replica c pulled workflow on demand")
	}

	usage := limits.Stats(serviceStateStore)
	logger.Info("statestore usage",
		"total_acquired", usage.TotalAcquired,
		"max_observed", usage.MaxObserved,
	)

	return nil
}

// batchProgressUpdates прогоняет серию обновлений прогресса через
// batch.Processor: конкурентные вызовы копятся и применяются батчами,
// каждый батч занимает один слот resource.Manager.
func batchProgressUpdates(ctx context.Context, logger *slog.Logger, cfg *config.Config, limits *resource.Manager, workflows *statemanager.WorkflowManager) error {
	batcher := batch.New(logger,
		batch.WithBatchSize(cfg.BatchSize),
		batch.WithWaitTime(cfg.BatchWaitTime),
		batch.WithMaxRetries(cfg.BatchMaxRetries),
	)
	defer batcher.Close()

	// Прогресс монотонный: внутри батча обновления одного workflow
	// схлопываются в максимум - одна запись в хранилище на workflow
	batcher.Register("set_progress", func(ctx context.Context, items []*batch.Item) (map[string]any, error) {
		release, err := limits.Acquire(ctx, serviceStateStore)
		if err != nil {
			return nil, err
		}
		defer release()

		coalesced := make(map[string]float64, len(items))
		for _, item := range items {
			workflowID, _ := item.Params["workflowId"].(string)
			progress, _ := item.Params["progress"].(float64)
			coalesced[workflowID] = max(coalesced[workflowID], progress)
		}

		for workflowID, progress := range coalesced {
			// Прогресс не откатывается: более ранний батч с большим
			// значением побеждает
			current, err := workflows.Get(ctx, workflowID)
			if err != nil {
				return nil, err
			}
			if current != nil && current.Progress >= progress {
				continue
			}
			if err := workflows.SetProgress(ctx, workflowID, progress); err != nil {
				return nil, err
			}
		}

		results := make(map[string]any, len(items))
		for _, item := range items {
			workflowID, _ := item.Params["workflowId"].(string)
			results[item.ID] = coalesced[workflowID]
		}
		return results, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, progress := range []float64{60, 80, 100} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := batcher.Add(ctx, "set_progress", map[string]any{
				"workflowId": "wf-1",
				"progress":   progress,
			}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		return fmt.Errorf("batched progress update failed: %w", err)
	}

	stats := batcher.Stats()
	logger.Info("progress updates batched",
		"items", stats.TotalItems,
		"batches", stats.TotalBatches,
		"avg_batch_size", stats.AvgBatchSize,
	)

	return nil
}

func snapshotKey(workflowID string) string {
	return models.EntityTypeWorkflow + ":" + workflowID
}

func printVersion() {
	fmt.Printf("statesync syncnode\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
