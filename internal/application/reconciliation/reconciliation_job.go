package reconciliation

import (
	"context"
	"sync"
	"time"

	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/receivable"
	"github.com/erp/order-reconciler/internal/domain/stock"
	"go.uber.org/zap"
)

// JobConfig holds configuration for the reconciliation job
type JobConfig struct {
	BatchSize int
	Interval  time.Duration
	// StaleAfter is how long an intent may sit in pending or stock_applied
	// before the job assumes the process that owned it is gone
	StaleAfter time.Duration
}

// DefaultJobConfig returns default configuration
func DefaultJobConfig() JobConfig {
	return JobConfig{
		BatchSize:  50,
		Interval:   30 * time.Second,
		StaleAfter: 5 * time.Minute,
	}
}

// JobStats summarizes one pass of the job
type JobStats struct {
	Retried   int
	Completed int
	Recovered int
	Aborted   int
	Flagged   int
	Dead      int
}

// Job finishes intents left behind by failed or interrupted edits. Each
// pass retries partial failures whose backoff elapsed, then recovers stale
// intents by comparing them with the local journals.
type Job struct {
	engine    *Engine
	intents   reconciliation.IntentRepository
	movements stock.MovementRepository
	journal   receivable.TransactionJournal
	config    JobConfig
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJob creates a new reconciliation job
func NewJob(
	engine *Engine,
	intents reconciliation.IntentRepository,
	movements stock.MovementRepository,
	journal receivable.TransactionJournal,
	config JobConfig,
	logger *zap.Logger,
) *Job {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultJobConfig().BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = DefaultJobConfig().Interval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultJobConfig().StaleAfter
	}
	return &Job{
		engine:    engine,
		intents:   intents,
		movements: movements,
		journal:   journal,
		config:    config,
		logger:    logger,
	}
}

// Start starts the background loop
func (j *Job) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go j.loop(ctx)

	j.logger.Info("reconciliation job started",
		zap.Int("batch_size", j.config.BatchSize),
		zap.Duration("interval", j.config.Interval),
		zap.Duration("stale_after", j.config.StaleAfter),
	)
	return nil
}

// Stop gracefully stops the job
func (j *Job) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("reconciliation job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) loop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single pass and reports what it did
func (j *Job) RunOnce(ctx context.Context) JobStats {
	var stats JobStats
	now := time.Now()

	retryable, err := j.intents.FindRetryable(ctx, now, j.config.BatchSize)
	if err != nil {
		j.logger.Error("failed to find retryable intents", zap.Error(err))
	} else {
		for _, intent := range retryable {
			stats.Retried++
			j.resume(ctx, intent, &stats)
		}
	}

	stale, err := j.intents.FindStale(ctx,
		[]reconciliation.IntentStatus{reconciliation.IntentPending, reconciliation.IntentStockApplied},
		now.Add(-j.config.StaleAfter), j.config.BatchSize)
	if err != nil {
		j.logger.Error("failed to find stale intents", zap.Error(err))
		return stats
	}
	for _, intent := range stale {
		j.recover(ctx, intent, &stats)
	}

	if stats != (JobStats{}) {
		j.logger.Info("reconciliation pass finished",
			zap.Int("retried", stats.Retried),
			zap.Int("completed", stats.Completed),
			zap.Int("recovered", stats.Recovered),
			zap.Int("aborted", stats.Aborted),
			zap.Int("flagged", stats.Flagged),
			zap.Int("dead", stats.Dead),
		)
	}
	return stats
}

func (j *Job) resume(ctx context.Context, intent *reconciliation.Intent, stats *JobStats) {
	result, err := j.engine.ResumeIntent(ctx, intent)
	if err != nil {
		j.logger.Error("failed to resume intent",
			zap.String("intent_id", intent.ID.String()),
			zap.Error(err))
		return
	}
	switch {
	case result.Outcome == OutcomeApplied:
		stats.Completed++
	case intent.IsDead():
		stats.Dead++
	}
}

// recover decides what happened to an intent whose owner disappeared
func (j *Job) recover(ctx context.Context, intent *reconciliation.Intent, stats *JobStats) {
	log := j.logger.With(
		zap.String("intent_id", intent.ID.String()),
		zap.String("transition", intent.Key.String()),
		zap.String("status", string(intent.Status)))

	switch intent.Status {
	case reconciliation.IntentPending:
		applied, err := j.appliedStockDeltas(ctx, intent)
		if err != nil {
			log.Error("failed to load movements of stale intent", zap.Error(err))
			return
		}
		switch {
		case applied == len(intent.StockDeltas):
			_ = intent.MarkStockApplied()
			j.markGuard(ctx, intent, log)
			if err := j.syncBalanceProgress(ctx, intent); err != nil {
				log.Error("failed to load balance journal of stale intent", zap.Error(err))
				return
			}
			stats.Recovered++
			log.Info("Stale intent had applied its stock step, finishing balance")
			j.resume(ctx, intent, stats)
			return
		case applied == 0:
			intent.MarkAborted("abandoned before any stock delta was applied")
			stats.Aborted++
			log.Warn("Stale intent aborted")
		default:
			intent.MarkNeedsReview("stock partially applied by an interrupted transition")
			stats.Flagged++
			log.Error("Stale intent left stock partially applied",
				zap.Int("applied", applied),
				zap.Int("planned", len(intent.StockDeltas)))
		}
		if err := j.intents.Update(ctx, intent); err != nil {
			log.Error("failed to update stale intent", zap.Error(err))
		}

	case reconciliation.IntentStockApplied:
		if err := j.syncBalanceProgress(ctx, intent); err != nil {
			log.Error("failed to load balance journal of stale intent", zap.Error(err))
			return
		}
		stats.Recovered++
		j.resume(ctx, intent, stats)
	}
}

// syncBalanceProgress advances the intent past balance steps the local
// journal shows as applied
func (j *Job) syncBalanceProgress(ctx context.Context, intent *reconciliation.Intent) error {
	txs, err := j.journal.FindByIntent(ctx, intent.ID)
	if err != nil {
		return err
	}
	if len(txs) > intent.BalanceApplied {
		intent.BalanceApplied = min(len(txs), len(intent.BalanceSteps))
	}
	return nil
}

// appliedStockDeltas counts the planned products that have a movement
// recorded for the intent and were not compensated afterwards
func (j *Job) appliedStockDeltas(ctx context.Context, intent *reconciliation.Intent) (int, error) {
	if !intent.HasStockStep() {
		return 0, nil
	}
	movements, err := j.movements.FindByIntent(ctx, intent.ID)
	if err != nil {
		return 0, err
	}
	net := make(map[int64]int)
	for _, m := range movements {
		if m.Reason == stock.ReasonCompensation {
			net[m.ProductID]--
		} else {
			net[m.ProductID]++
		}
	}
	applied := 0
	for _, d := range intent.StockDeltas {
		if net[d.ProductID] > 0 {
			applied++
		}
	}
	return applied, nil
}

// markGuard marks the intent's transition unless a newer transition of
// the same kind was reconciled in the meantime
func (j *Job) markGuard(ctx context.Context, intent *reconciliation.Intent, log *zap.Logger) {
	history, err := j.engine.guard.History(ctx, intent.Key.OrderID)
	if err != nil {
		log.Error("failed to load transition history", zap.Error(err))
		return
	}
	for _, rec := range history {
		if rec.Key.Kind == intent.Key.Kind && rec.AppliedAt.After(intent.CreatedAt) {
			return
		}
	}
	id := intent.ID
	if err := j.engine.guard.MarkApplied(ctx, intent.Key, &id); err != nil {
		log.Error("failed to mark recovered transition", zap.Error(err))
	}
}
