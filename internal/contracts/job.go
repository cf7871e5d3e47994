package contracts

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the ranking job state
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsActive reports whether the job still blocks a new enqueue for its symbol
func (s JobStatus) IsActive() bool {
	return s == JobPending || s == JobRunning
}

// RankingJob is one durable request to rank a symbol
// ⭐ SSOT: 랭킹 작업 상태 정의
type RankingJob struct {
	ID          uuid.UUID  `json:"job_id"`
	Symbol      string     `json:"symbol"`
	Priority    int        `json:"priority"` // higher first
	Status      JobStatus  `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastError   string     `json:"last_error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	ClaimedBy   string     `json:"-"`
	RunAfter    time.Time  `json:"run_after"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal reports whether no further transition will happen
func (j *RankingJob) IsTerminal() bool {
	return j.Status == JobCompleted || (j.Status == JobFailed && j.RetryCount >= j.MaxRetries)
}

// NextStatusAfterFailure applies one failure to the retry budget.
// Returns the incremented retry count and the status the job moves to.
func NextStatusAfterFailure(retryCount, maxRetries int) (int, JobStatus) {
	next := retryCount + 1
	if next < maxRetries {
		return next, JobPending
	}
	return next, JobFailed
}

// EnqueueResult is returned by Enqueue
type EnqueueResult struct {
	Job           *RankingJob `json:"job"`
	Deduplicated  bool        `json:"deduplicated"`
	QueuePosition int         `json:"queue_position"` // 1-based among pending, 0 when running
}

// FailureRecord is what a worker reports for a failed run
type FailureRecord struct {
	Err     error
	Kind    ErrorKind
	Backoff time.Duration
}

// QueueStats counts jobs by status
type QueueStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Total returns the number of tracked jobs
func (s QueueStats) Total() int {
	return s.Pending + s.Running + s.Completed + s.Failed
}
