package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/optionrank/pkg/logger"
)

// watchlistPriority is below any interactive request
const watchlistPriority = 0

// WatchlistJob enqueues a ranking run for every watchlist symbol
type WatchlistJob struct {
	queue    Queue
	symbols  []string
	schedule string
	logger   *logger.Logger
}

// NewWatchlistJob creates a new watchlist job
func NewWatchlistJob(q Queue, symbols []string, schedule string, log *logger.Logger) *WatchlistJob {
	if schedule == "" {
		schedule = "0 */15 * * * *"
	}
	return &WatchlistJob{
		queue:    q,
		symbols:  symbols,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *WatchlistJob) Name() string {
	return "watchlist_enqueue"
}

// Schedule returns the configured cron schedule
func (j *WatchlistJob) Schedule() string {
	return j.schedule
}

// Run enqueues every symbol; duplicates of in-flight jobs collapse in the store
func (j *WatchlistJob) Run(ctx context.Context) error {
	var errs []error
	created := 0

	for _, sym := range j.symbols {
		receipt, err := j.queue.Enqueue(ctx, sym, watchlistPriority)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		if !receipt.Deduplicated {
			created++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(j.symbols),
		"created": created,
		"failed":  len(errs),
	}).Info("Watchlist enqueue completed")

	return errors.Join(errs...)
}
