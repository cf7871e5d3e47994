package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optionrank/internal/contracts"
)

// fakeClock is advanced manually
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const window = 5 * time.Minute

func TestEnqueue_Dedup(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	first, err := s.Enqueue(ctx, "AAPL", 0, 3, window)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, 0, first.QueuePosition)

	clock.Advance(60 * time.Second)
	second, err := s.Enqueue(ctx, "AAPL", 5, 3, window)
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Job.ID, second.Job.ID)
	assert.Equal(t, 0, second.Job.Priority) // original row unchanged

	// 윈도우 만료 후에는 새 작업
	clock.Advance(window)
	third, err := s.Enqueue(ctx, "AAPL", 0, 3, window)
	require.NoError(t, err)
	assert.False(t, third.Deduplicated)
	assert.NotEqual(t, first.Job.ID, third.Job.ID)
}

func TestEnqueue_DedupWhileRunning(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.Enqueue(ctx, "SPY", 0, 3, window)
	_, err := s.ClaimNext(ctx, "w1")
	require.NoError(t, err)

	again, err := s.Enqueue(ctx, "SPY", 0, 3, window)
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, first.Job.ID, again.Job.ID)
	assert.Equal(t, 0, again.QueuePosition)
}

func TestEnqueue_ConcurrentSameSymbol(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Enqueue(ctx, "QQQ", 0, 3, window)
			if err == nil {
				ids <- res.Job.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestQueuePosition(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	a, _ := s.Enqueue(ctx, "A", 1, 3, window)
	clock.Advance(time.Second)
	b, _ := s.Enqueue(ctx, "B", 1, 3, window)
	clock.Advance(time.Second)
	c, _ := s.Enqueue(ctx, "C", 0, 3, window)
	clock.Advance(time.Second)
	d, _ := s.Enqueue(ctx, "D", 5, 3, window)

	// count of pending jobs ahead: higher priority, or same priority created earlier
	assert.Equal(t, 0, a.QueuePosition)
	assert.Equal(t, 1, b.QueuePosition)
	assert.Equal(t, 2, c.QueuePosition)
	assert.Equal(t, 0, d.QueuePosition)

	// D is now ahead of everyone
	pos, err := s.QueuePosition(ctx, c.Job)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestClaimNext_Order(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	for i, p := range []int{0, 2, 2, 1} {
		_, err := s.Enqueue(ctx, fmt.Sprintf("S%d", i), p, 3, window)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	var order []string
	for {
		job, err := s.ClaimNext(ctx, "w")
		if errors.Is(err, contracts.ErrNoPendingJob) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, contracts.JobRunning, job.Status)
		order = append(order, job.Symbol)
	}
	assert.Equal(t, []string{"S1", "S2", "S3", "S0"}, order)
}

func TestClaimNext_ConcurrentExactlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	const jobs = 200
	for i := 0; i < jobs; i++ {
		_, err := s.Enqueue(ctx, fmt.Sprintf("SYM%03d", i), i%4, 3, window)
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = map[uuid.UUID]string{}
		dupes   int
		wg      sync.WaitGroup
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				job, err := s.ClaimNext(ctx, worker)
				if err != nil {
					return
				}
				mu.Lock()
				if _, ok := claimed[job.ID]; ok {
					dupes++
				}
				claimed[job.ID] = worker
				mu.Unlock()
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()

	assert.Zero(t, dupes)
	assert.Len(t, claimed, jobs)
}

func TestFail_RetriesThenTerminal(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	res, _ := s.Enqueue(ctx, "AAPL", 0, 3, window)
	boom := fmt.Errorf("fetch chain: %w", contracts.ErrDataUnavailable)

	for attempt := 1; attempt <= 3; attempt++ {
		job, err := s.ClaimNext(ctx, "w1")
		require.NoError(t, err, "attempt %d", attempt)

		failed, err := s.Fail(ctx, job.ID, "w1", contracts.FailureRecord{
			Err:     boom,
			Kind:    contracts.ClassifyError(boom),
			Backoff: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, attempt, failed.RetryCount)
		assert.Equal(t, boom.Error(), failed.LastError)
		assert.Equal(t, contracts.ErrorKindDataUnavailable, failed.ErrorKind)

		if attempt < 3 {
			assert.Equal(t, contracts.JobPending, failed.Status)

			// backoff 동안 claim 불가
			_, err = s.ClaimNext(ctx, "w1")
			assert.ErrorIs(t, err, contracts.ErrNoPendingJob)
			clock.Advance(5 * time.Second)
		} else {
			assert.Equal(t, contracts.JobFailed, failed.Status)
			assert.True(t, failed.IsTerminal())
		}
	}

	clock.Advance(time.Hour)
	_, err := s.ClaimNext(ctx, "w1")
	assert.ErrorIs(t, err, contracts.ErrNoPendingJob)

	got, err := s.Get(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.JobFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestReclaimStale_FencesOriginalWorker(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	s.Enqueue(ctx, "TSLA", 0, 3, window)
	job, err := s.ClaimNext(ctx, "slow-worker")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	reclaimed, err := s.ReclaimStale(ctx, clock.Now().Add(-5*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, contracts.JobPending, reclaimed[0].Status)
	assert.Equal(t, contracts.ErrorKindTimeout, reclaimed[0].ErrorKind)
	assert.Equal(t, 1, reclaimed[0].RetryCount)

	// 원래 워커는 더 이상 커밋 불가
	err = s.CommitRun(ctx, job, "slow-worker", &contracts.RankSet{Symbol: "TSLA"})
	assert.ErrorIs(t, err, contracts.ErrJobLost)
	_, err = s.Fail(ctx, job.ID, "slow-worker", contracts.FailureRecord{Err: errors.New("late")})
	assert.ErrorIs(t, err, contracts.ErrJobLost)

	_, err = s.Latest(ctx, "TSLA")
	assert.ErrorIs(t, err, contracts.ErrRankingNotFound)

	// 다른 워커가 다시 가져감
	again, err := s.ClaimNext(ctx, "fresh-worker")
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
}

func TestCommitRun_ReplacesWholesale(t *testing.T) {
	s := New()
	ctx := context.Background()

	run := func(ids ...string) {
		s.Enqueue(ctx, "AAPL", 0, 3, 0)
		job, err := s.ClaimNext(ctx, "w")
		require.NoError(t, err)
		set := &contracts.RankSet{Symbol: "AAPL", JobID: job.ID}
		for i, id := range ids {
			set.Ranks = append(set.Ranks, contracts.CompositeRank{ContractID: id, RankPosition: i + 1})
		}
		require.NoError(t, s.CommitRun(ctx, job, "w", set))

		got, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, contracts.JobCompleted, got.Status)
	}

	run("A", "B", "C")
	run("D")

	latest, err := s.Latest(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, latest.Ranks, 1)
	assert.Equal(t, "D", latest.Ranks[0].ContractID)
}

func TestStatsAndPrune(t *testing.T) {
	clock := newFakeClock()
	s := NewWithClock(clock.Now)
	ctx := context.Background()

	for _, sym := range []string{"A", "B", "C"} {
		maxRetries := 3
		if sym == "A" {
			maxRetries = 0
		}
		s.Enqueue(ctx, sym, 0, maxRetries, window)
		clock.Advance(time.Second)
	}

	job, _ := s.ClaimNext(ctx, "w")
	_, err := s.Fail(ctx, job.ID, "w", contracts.FailureRecord{Err: errors.New("x")}) // max_retries 0 → terminal
	require.NoError(t, err)
	s.ClaimNext(ctx, "w")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.QueueStats{Pending: 1, Running: 1, Failed: 1}, *stats)

	clock.Advance(time.Hour)
	n, err := s.Prune(ctx, clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, s.Jobs(), 2)
}
