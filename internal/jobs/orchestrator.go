// Package jobs runs ranking jobs: enqueue with dedup, claim, compute, commit or retry.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/events"
	"github.com/wonny/optionrank/pkg/config"
	"github.com/wonny/optionrank/pkg/logger"
)

// maxBackoff caps the exponential retry delay
const maxBackoff = 5 * time.Minute

// Receipt is what a caller gets back from Enqueue
type Receipt struct {
	JobID               uuid.UUID           `json:"job_id"`
	Symbol              string              `json:"symbol"`
	Status              contracts.JobStatus `json:"status"`
	Deduplicated        bool                `json:"deduplicated"`
	QueuePosition       int                 `json:"queue_position"`
	EstimatedCompletion time.Time           `json:"estimated_completion"`
}

// JobView is a job plus its live queue position
type JobView struct {
	*contracts.RankingJob
	QueuePosition       int        `json:"queue_position"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// Orchestrator is the job queue facade used by the API, CLI, scheduler and workers
// ⭐ SSOT: 작업 등록/재시도/회수 정책은 여기서만
type Orchestrator struct {
	store     contracts.JobStore
	cfg       config.RankingConfig
	publisher events.Publisher
	metrics   *Metrics
	logger    *logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. publisher and metrics may be nil.
func NewOrchestrator(cfg config.RankingConfig, store contracts.JobStore, publisher events.Publisher, metrics *Metrics, log *logger.Logger) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		store:     store,
		cfg:       cfg,
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock (tests)
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Metrics returns the collectors
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Enqueue requests a ranking run for symbol. A pending or running job for the
// same symbol inside the dedup window is returned instead of a new one.
func (o *Orchestrator) Enqueue(ctx context.Context, symbol string, priority int) (*Receipt, error) {
	sym, err := contracts.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	res, err := o.store.Enqueue(ctx, sym, priority, o.cfg.MaxRetries, o.cfg.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", sym, err)
	}

	outcome := "created"
	if res.Deduplicated {
		outcome = "deduplicated"
	}
	o.metrics.JobsEnqueued.WithLabelValues(outcome).Inc()

	o.logger.WithFields(map[string]interface{}{
		"job_id":         res.Job.ID,
		"symbol":         sym,
		"priority":       priority,
		"deduplicated":   res.Deduplicated,
		"queue_position": res.QueuePosition,
	}).Info("Ranking job enqueued")

	return &Receipt{
		JobID:               res.Job.ID,
		Symbol:              sym,
		Status:              res.Job.Status,
		Deduplicated:        res.Deduplicated,
		QueuePosition:       res.QueuePosition,
		EstimatedCompletion: o.EstimateCompletion(res.Job.Status, res.QueuePosition),
	}, nil
}

// EstimateCompletion is now + (jobs ahead + 1) × job duration ÷ workers for
// pending jobs, now + one job duration for running jobs
func (o *Orchestrator) EstimateCompletion(status contracts.JobStatus, position int) time.Time {
	now := o.now()
	switch {
	case status == contracts.JobRunning:
		return now.Add(o.cfg.EstimatedJobDuration)
	case status == contracts.JobPending:
		workers := o.cfg.WorkerConcurrency
		if workers < 1 {
			workers = 1
		}
		return now.Add(time.Duration(position+1) * o.cfg.EstimatedJobDuration / time.Duration(workers))
	default:
		return now
	}
}

// Status returns a job with its current queue position
func (o *Orchestrator) Status(ctx context.Context, id uuid.UUID) (*JobView, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &JobView{RankingJob: job}
	if job.Status.IsActive() {
		pos, err := o.store.QueuePosition(ctx, job)
		if err != nil {
			return nil, err
		}
		eta := o.EstimateCompletion(job.Status, pos)
		st.QueuePosition = pos
		st.EstimatedCompletion = &eta
	}
	return st, nil
}

// Stats returns job counts by status and refreshes the queue gauges
func (o *Orchestrator) Stats(ctx context.Context) (*contracts.QueueStats, error) {
	stats, err := o.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	o.metrics.observeStats(stats)
	return stats, nil
}

// ReclaimStale fails running jobs older than the job timeout so they can be retried
func (o *Orchestrator) ReclaimStale(ctx context.Context) (int, error) {
	cutoff := o.now().Add(-o.cfg.JobTimeout)
	reclaimed, err := o.store.ReclaimStale(ctx, cutoff, o.cfg.RetryBackoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}

	for _, job := range reclaimed {
		o.metrics.JobsReclaimed.Inc()
		o.recordFailure(ctx, job)
	}
	return len(reclaimed), nil
}

// Prune deletes finished jobs older than the retention period
func (o *Orchestrator) Prune(ctx context.Context) (int64, error) {
	n, err := o.store.Prune(ctx, o.now().Add(-o.cfg.JobRetention))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	if n > 0 {
		o.logger.WithField("deleted", n).Info("Pruned finished ranking jobs")
	}
	return n, nil
}

// Backoff returns the delay before a job with retryCount prior failures may run again
func (o *Orchestrator) Backoff(retryCount int) time.Duration {
	d := o.cfg.RetryBackoff
	for i := 0; i < retryCount && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// fail reports a worker failure to the store
func (o *Orchestrator) fail(ctx context.Context, job *contracts.RankingJob, token string, err error) (*contracts.RankingJob, error) {
	rec := contracts.FailureRecord{
		Err:     err,
		Kind:    contracts.ClassifyError(err),
		Backoff: o.Backoff(job.RetryCount),
	}

	updated, ferr := o.store.Fail(ctx, job.ID, token, rec)
	if ferr != nil {
		return nil, ferr
	}
	o.recordFailure(ctx, updated)
	return updated, nil
}

// recordFailure logs, counts and publishes a job that just failed
func (o *Orchestrator) recordFailure(ctx context.Context, job *contracts.RankingJob) {
	fields := map[string]interface{}{
		"job_id":      job.ID,
		"symbol":      job.Symbol,
		"retry_count": job.RetryCount,
		"max_retries": job.MaxRetries,
		"error_kind":  job.ErrorKind,
		"error":       job.LastError,
	}

	if job.Status == contracts.JobPending {
		o.metrics.JobsFailed.WithLabelValues(string(job.ErrorKind), "retried").Inc()
		fields["run_after"] = job.RunAfter
		o.logger.WithFields(fields).Warn("Ranking job failed, retrying")
		return
	}

	o.metrics.JobsFailed.WithLabelValues(string(job.ErrorKind), "terminal").Inc()
	o.logger.WithFields(fields).Error("Ranking job failed permanently")

	if err := o.publisher.Publish(ctx, events.Failed(job, o.now())); err != nil {
		o.logger.WithError(err).Warn("Failed to publish ranking.failed event")
	}
}

// completed logs, counts and publishes a committed run
func (o *Orchestrator) completed(ctx context.Context, job *contracts.RankingJob, set *contracts.RankSet) {
	o.metrics.JobsCompleted.Inc()
	o.metrics.ContractsRanked.Add(float64(len(set.Ranks)))
	for reason, n := range set.Excluded {
		o.metrics.ContractsExcluded.WithLabelValues(reason).Add(float64(n))
	}

	o.logger.WithFields(map[string]interface{}{
		"job_id":      job.ID,
		"symbol":      job.Symbol,
		"ranked":      len(set.Ranks),
		"retry_count": job.RetryCount,
	}).Info("Ranking job completed")

	if err := o.publisher.Publish(ctx, events.Completed(job, set, o.now())); err != nil {
		o.logger.WithError(err).Warn("Failed to publish ranking.completed event")
	}
}
