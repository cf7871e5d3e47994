package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/optionrank/internal/contracts"
	orchestrator "github.com/wonny/optionrank/internal/jobs"
	"github.com/wonny/optionrank/pkg/logger"
)

// Queue is the part of the ranking orchestrator the scheduled jobs drive
type Queue interface {
	Enqueue(ctx context.Context, symbol string, priority int) (*orchestrator.Receipt, error)
	ReclaimStale(ctx context.Context) (int, error)
	Prune(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*contracts.QueueStats, error)
}

// ReclaimStaleJob returns timed-out running jobs to the queue
// ⭐ SSOT: stale 작업 회수 스케줄은 이 Job에서만
type ReclaimStaleJob struct {
	queue  Queue
	logger *logger.Logger
}

// NewReclaimStaleJob creates a new reclaim job
func NewReclaimStaleJob(q Queue, log *logger.Logger) *ReclaimStaleJob {
	return &ReclaimStaleJob{queue: q, logger: log}
}

// Name returns the job name
func (j *ReclaimStaleJob) Name() string {
	return "reclaim_stale"
}

// Schedule returns the cron schedule (every minute)
func (j *ReclaimStaleJob) Schedule() string {
	return "0 * * * * *"
}

// Run executes the reclaim
func (j *ReclaimStaleJob) Run(ctx context.Context) error {
	n, err := j.queue.ReclaimStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.WithField("reclaimed", n).Warn("Reclaimed stale ranking jobs")
	}
	return nil
}

// PruneJobsJob deletes finished jobs past retention
type PruneJobsJob struct {
	queue  Queue
	logger *logger.Logger
}

// NewPruneJobsJob creates a new prune job
func NewPruneJobsJob(q Queue, log *logger.Logger) *PruneJobsJob {
	return &PruneJobsJob{queue: q, logger: log}
}

// Name returns the job name
func (j *PruneJobsJob) Name() string {
	return "prune_jobs"
}

// Schedule returns the cron schedule (daily 03:30)
func (j *PruneJobsJob) Schedule() string {
	return "0 30 3 * * *"
}

// Run executes the prune
func (j *PruneJobsJob) Run(ctx context.Context) error {
	_, err := j.queue.Prune(ctx)
	return err
}

// QueueStatsJob refreshes the queue depth gauges
type QueueStatsJob struct {
	queue  Queue
	logger *logger.Logger
}

// NewQueueStatsJob creates a new stats job
func NewQueueStatsJob(q Queue, log *logger.Logger) *QueueStatsJob {
	return &QueueStatsJob{queue: q, logger: log}
}

// Name returns the job name
func (j *QueueStatsJob) Name() string {
	return "queue_stats"
}

// Schedule returns the cron schedule (every 30 seconds)
func (j *QueueStatsJob) Schedule() string {
	return "*/30 * * * * *"
}

// Run executes the stats refresh
func (j *QueueStatsJob) Run(ctx context.Context) error {
	stats, err := j.queue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("refresh queue stats: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"pending": stats.Pending,
		"running": stats.Running,
		"failed":  stats.Failed,
	}).Debug("Queue stats refreshed")
	return nil
}
