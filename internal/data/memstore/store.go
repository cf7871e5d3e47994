// Package memstore is an in-process JobStore and RankStore.
// Used by the one-shot CLI, API tests and concurrency tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/optionrank/internal/contracts"
)

// Store keeps jobs and rank sets behind one mutex.
// ⭐ SSOT: claim/complete/fail 는 단일 임계 구역에서만 상태 전이
type Store struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*contracts.RankingJob
	ranks map[string]*contracts.RankSet
	now   func() time.Time
}

// New creates an empty store using the wall clock
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty store with an injectable clock
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		jobs:  make(map[uuid.UUID]*contracts.RankingJob),
		ranks: make(map[string]*contracts.RankSet),
		now:   now,
	}
}

// Enqueue returns the active job created within dedupWindow, or inserts a new one
func (s *Store) Enqueue(ctx context.Context, symbol string, priority, maxRetries int, dedupWindow time.Duration) (*contracts.EnqueueResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing := s.activeJobLocked(symbol, now.Add(-dedupWindow)); existing != nil {
		return &contracts.EnqueueResult{
			Job:           copyJob(existing),
			Deduplicated:  true,
			QueuePosition: s.positionLocked(existing),
		}, nil
	}

	job := &contracts.RankingJob{
		ID:         uuid.New(),
		Symbol:     symbol,
		Priority:   priority,
		Status:     contracts.JobPending,
		MaxRetries: maxRetries,
		RunAfter:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.jobs[job.ID] = job

	return &contracts.EnqueueResult{
		Job:           copyJob(job),
		QueuePosition: s.positionLocked(job),
	}, nil
}

func (s *Store) activeJobLocked(symbol string, since time.Time) *contracts.RankingJob {
	var found *contracts.RankingJob
	for _, j := range s.jobs {
		if j.Symbol != symbol || !j.Status.IsActive() || j.CreatedAt.Before(since) {
			continue
		}
		if found == nil || j.CreatedAt.After(found.CreatedAt) {
			found = j
		}
	}
	return found
}

// ClaimNext moves the oldest highest-priority claimable job to running
func (s *Store) ClaimNext(ctx context.Context, token string) (*contracts.RankingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var next *contracts.RankingJob
	for _, j := range s.jobs {
		if j.Status != contracts.JobPending || j.RunAfter.After(now) {
			continue
		}
		if next == nil || claimsBefore(j, next) {
			next = j
		}
	}
	if next == nil {
		return nil, contracts.ErrNoPendingJob
	}

	next.Status = contracts.JobRunning
	next.ClaimedBy = token
	next.StartedAt = &now
	next.UpdatedAt = now

	return copyJob(next), nil
}

// claimsBefore orders by priority desc, created_at asc, id asc
func claimsBefore(a, b *contracts.RankingJob) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// Fail records the failure and applies the retry budget
func (s *Store) Fail(ctx context.Context, id uuid.UUID, token string, rec contracts.FailureRecord) (*contracts.RankingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.ownedLocked(id, token)
	if err != nil {
		return nil, err
	}

	s.failLocked(job, rec, s.now())
	return copyJob(job), nil
}

func (s *Store) failLocked(job *contracts.RankingJob, rec contracts.FailureRecord, now time.Time) {
	job.RetryCount, job.Status = contracts.NextStatusAfterFailure(job.RetryCount, job.MaxRetries)
	if rec.Err != nil {
		job.LastError = rec.Err.Error()
	}
	job.ErrorKind = rec.Kind
	job.ClaimedBy = ""
	job.UpdatedAt = now

	if job.Status == contracts.JobPending {
		job.RunAfter = now.Add(rec.Backoff)
	} else {
		job.CompletedAt = &now
	}
}

func (s *Store) ownedLocked(id uuid.UUID, token string) (*contracts.RankingJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, contracts.ErrJobNotFound
	}
	if job.Status != contracts.JobRunning || job.ClaimedBy != token {
		return nil, contracts.ErrJobLost
	}
	return job, nil
}

// ReclaimStale fails running jobs started before cutoff as timeouts
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time, backoff time.Duration) ([]*contracts.RankingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var reclaimed []*contracts.RankingJob
	for _, j := range s.jobs {
		if j.Status != contracts.JobRunning || j.StartedAt == nil || !j.StartedAt.Before(cutoff) {
			continue
		}
		s.failLocked(j, contracts.FailureRecord{
			Err:     contracts.ErrJobTimeout,
			Kind:    contracts.ErrorKindTimeout,
			Backoff: backoff,
		}, now)
		reclaimed = append(reclaimed, copyJob(j))
	}
	return reclaimed, nil
}

// CommitRun replaces the symbol's set and completes the job under one lock
func (s *Store) CommitRun(ctx context.Context, job *contracts.RankingJob, token string, set *contracts.RankSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.ownedLocked(job.ID, token)
	if err != nil {
		return err
	}

	now := s.now()
	cp := *set
	cp.Ranks = append([]contracts.CompositeRank(nil), set.Ranks...)
	s.ranks[set.Symbol] = &cp

	stored.Status = contracts.JobCompleted
	stored.CompletedAt = &now
	stored.UpdatedAt = now
	return nil
}

// Latest returns the last committed set
func (s *Store) Latest(ctx context.Context, symbol string) (*contracts.RankSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.ranks[symbol]
	if !ok {
		return nil, contracts.ErrRankingNotFound
	}
	cp := *set
	return &cp, nil
}

// Get returns a job by id
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*contracts.RankingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, contracts.ErrJobNotFound
	}
	return copyJob(job), nil
}

// QueuePosition counts pending jobs claimed before job; 0 when nothing is ahead
// or job is no longer pending
func (s *Store) QueuePosition(ctx context.Context, job *contracts.RankingJob) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[job.ID]
	if !ok {
		return 0, contracts.ErrJobNotFound
	}
	return s.positionLocked(stored), nil
}

func (s *Store) positionLocked(job *contracts.RankingJob) int {
	if job.Status != contracts.JobPending {
		return 0
	}
	ahead := 0
	for _, j := range s.jobs {
		if j.ID != job.ID && j.Status == contracts.JobPending && claimsBefore(j, job) {
			ahead++
		}
	}
	return ahead
}

// Stats counts jobs by status
func (s *Store) Stats(ctx context.Context) (*contracts.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats contracts.QueueStats
	for _, j := range s.jobs {
		switch j.Status {
		case contracts.JobPending:
			stats.Pending++
		case contracts.JobRunning:
			stats.Running++
		case contracts.JobCompleted:
			stats.Completed++
		case contracts.JobFailed:
			stats.Failed++
		}
	}
	return &stats, nil
}

// Prune deletes finished jobs last updated before cutoff
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, j := range s.jobs {
		if (j.Status == contracts.JobCompleted || j.Status == contracts.JobFailed) && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Jobs returns a snapshot of every job ordered by claim order
func (s *Store) Jobs() []*contracts.RankingJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*contracts.RankingJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return claimsBefore(out[i], out[k]) })
	return out
}

func copyJob(j *contracts.RankingJob) *contracts.RankingJob {
	cp := *j
	return &cp
}
