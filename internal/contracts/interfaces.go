package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SnapshotSource supplies one consistent chain per ranking run.
// Fetch failures must wrap ErrDataUnavailable.
// ⭐ SSOT: 옵션 체인 입력 인터페이스
type SnapshotSource interface {
	Fetch(ctx context.Context, symbol string) (*ChainSnapshot, error)
}

// JobStore is the durable ranking job queue
// ⭐ SSOT: 작업 큐 인터페이스
type JobStore interface {
	// Enqueue returns the active job for symbol created within dedupWindow, or inserts a new one
	Enqueue(ctx context.Context, symbol string, priority, maxRetries int, dedupWindow time.Duration) (*EnqueueResult, error)

	// ClaimNext atomically moves the oldest highest-priority claimable job to running.
	// Returns ErrNoPendingJob when nothing is claimable.
	ClaimNext(ctx context.Context, token string) (*RankingJob, error)

	// Fail records err on a running job owned by token and applies the retry budget
	Fail(ctx context.Context, id uuid.UUID, token string, rec FailureRecord) (*RankingJob, error)

	// ReclaimStale fails every running job started before cutoff
	ReclaimStale(ctx context.Context, cutoff time.Time, backoff time.Duration) ([]*RankingJob, error)

	Get(ctx context.Context, id uuid.UUID) (*RankingJob, error)
	QueuePosition(ctx context.Context, job *RankingJob) (int, error)
	Stats(ctx context.Context) (*QueueStats, error)

	// Prune deletes terminal jobs last updated before cutoff
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// RankStore holds the latest completed RankSet per symbol
// ⭐ SSOT: 랭킹 저장소 인터페이스
type RankStore interface {
	// CommitRun replaces the symbol's set and completes the job in one atomic step.
	// Returns ErrJobLost if the job is no longer running under token.
	CommitRun(ctx context.Context, job *RankingJob, token string, set *RankSet) error

	// Latest returns the last completed set, or ErrRankingNotFound
	Latest(ctx context.Context, symbol string) (*RankSet, error)
}

// RankingStore is the combined job queue and rank store a worker needs
type RankingStore interface {
	JobStore
	RankStore
}
