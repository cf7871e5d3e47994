package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/ranking"
	"github.com/wonny/optionrank/pkg/logger"
)

// Worker claims ranking jobs and runs them with bounded concurrency.
// Each job is computed single-threaded; slots run different jobs in parallel.
// ⭐ SSOT: 랭킹 작업 실행은 이 워커에서만
type Worker struct {
	orch   *Orchestrator
	ranks  contracts.RankStore
	source contracts.SnapshotSource
	engine *ranking.Engine
	logger *logger.Logger
	name   string

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorker creates a worker over the orchestrator's job store
func NewWorker(orch *Orchestrator, ranks contracts.RankStore, source contracts.SnapshotSource, engine *ranking.Engine, log *logger.Logger) *Worker {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return &Worker{
		orch:   orch,
		ranks:  ranks,
		source: source,
		engine: engine,
		logger: log,
		name:   fmt.Sprintf("%s-%d", host, os.Getpid()),
		stopCh: make(chan struct{}),
	}
}

// Start launches the claim loops and the stale-job reclaim loop. Returns immediately.
func (w *Worker) Start(ctx context.Context) {
	n := w.orch.cfg.WorkerConcurrency
	if n < 1 {
		n = 1
	}

	w.logger.WithFields(map[string]interface{}{
		"worker":      w.name,
		"concurrency": n,
	}).Info("Starting ranking worker")

	w.wg.Add(n + 1)
	for slot := 0; slot < n; slot++ {
		go w.claimLoop(ctx, slot)
	}
	go w.reclaimLoop(ctx)
}

// Stop signals every loop and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.logger.Info("Ranking worker stopped")
}

func (w *Worker) claimLoop(ctx context.Context, slot int) {
	defer w.wg.Done()

	poll := w.orch.cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		ran, err := w.RunOnce(ctx, slot)
		if err != nil {
			w.logger.WithError(err).WithField("slot", slot).Error("Failed to claim ranking job")
		}
		if ran {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-time.After(poll):
		}
	}
}

func (w *Worker) reclaimLoop(ctx context.Context) {
	defer w.wg.Done()

	interval := w.orch.cfg.JobTimeout / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.orch.ReclaimStale(ctx); err != nil {
				w.logger.WithError(err).Warn("Stale job reclaim failed")
			}
		}
	}
}

// RunOnce claims and runs at most one job. Returns false when nothing was claimable.
func (w *Worker) RunOnce(ctx context.Context, slot int) (bool, error) {
	token := fmt.Sprintf("%s/%d/%s", w.name, slot, uuid.NewString())

	job, err := w.orch.store.ClaimNext(ctx, token)
	if errors.Is(err, contracts.ErrNoPendingJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.process(ctx, job, token)
	return true, nil
}

// process runs one claimed job to commit or failure
func (w *Worker) process(ctx context.Context, job *contracts.RankingJob, token string) {
	start := time.Now()
	log := w.logger.WithFields(map[string]interface{}{
		"job_id": job.ID,
		"symbol": job.Symbol,
	})
	log.WithField("retry_count", job.RetryCount).Info("Ranking job started")

	set, err := w.execute(ctx, job)
	if err == nil {
		err = w.ranks.CommitRun(ctx, job, token, set)
		if err == nil {
			w.orch.metrics.JobDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
			w.orch.completed(ctx, job, set)
			return
		}
		if errors.Is(err, contracts.ErrJobLost) {
			w.lost(log)
			return
		}
		err = fmt.Errorf("commit ranking: %w", err)
	}

	w.orch.metrics.JobDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
	if _, ferr := w.orch.fail(ctx, job, token, err); ferr != nil {
		if errors.Is(ferr, contracts.ErrJobLost) {
			w.lost(log)
			return
		}
		log.WithError(ferr).Error("Failed to record ranking job failure")
	}
}

func (w *Worker) lost(log *logger.Logger) {
	w.orch.metrics.JobsLost.Inc()
	log.Warn("Ranking job was reclaimed before commit, result discarded")
}

// execute fetches one snapshot and computes the rank set under the job timeout.
// A panic is reported as a computation failure.
func (w *Worker) execute(ctx context.Context, job *contracts.RankingJob) (set *contracts.RankSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = fmt.Errorf("%w: panic: %v", contracts.ErrComputation, r)
		}
	}()

	timeout := w.orch.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chain, err := w.source.Fetch(jobCtx, job.Symbol)
	if err != nil {
		if jobCtx.Err() != nil {
			return nil, fmt.Errorf("%w: fetch snapshot: %v", contracts.ErrJobTimeout, err)
		}
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	var prev contracts.PreviousSnapshot
	last, err := w.ranks.Latest(jobCtx, job.Symbol)
	switch {
	case err == nil:
		prev = last.Previous()
	case errors.Is(err, contracts.ErrRankingNotFound):
		// first run for this symbol
	default:
		return nil, fmt.Errorf("load previous ranking: %w", err)
	}

	set, err = w.engine.Run(chain, prev, job.ID, w.orch.now())
	if err != nil {
		return nil, err
	}

	if jobCtx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrJobTimeout, jobCtx.Err())
	}
	return set, nil
}
