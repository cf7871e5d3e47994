package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/optionrank/pkg/logger"
)

type countingJob struct {
	name     string
	failures int32 // fail this many runs first
	runs     int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return "0 * * * * *" }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.runs, 1)
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestScheduler_AddRemove(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "b"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a"}), "duplicate name")
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	_, err := s.RunJob("missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobWaitsForResult(t *testing.T) {
	s := New(logger.Nop()).WithRetry(1, 0)
	flaky := &countingJob{name: "flaky", failures: 1}
	require.NoError(t, s.AddJob(flaky))

	result, err := s.RunJob("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "flaky", result.JobName)
	assert.Equal(t, int32(2), atomic.LoadInt32(&flaky.runs))

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)

	// history is a snapshot; later runs don't mutate it
	_, err = s.RunJob("flaky")
	require.NoError(t, err)
	assert.Len(t, history.Results, 1)
	assert.Equal(t, 2, s.GetJobStats()["flaky"].TotalRuns)
}

func TestScheduler_RetryHistory(t *testing.T) {
	s := New(logger.Nop()).WithRetry(2, 0)

	flaky := &countingJob{name: "flaky", failures: 1}
	broken := &countingJob{name: "broken", failures: 100}
	require.NoError(t, s.AddJob(flaky))
	require.NoError(t, s.AddJob(broken))

	s.runJob(flaky)
	s.runJob(broken)

	assert.Equal(t, int32(2), atomic.LoadInt32(&flaky.runs))
	assert.Equal(t, int32(3), atomic.LoadInt32(&broken.runs), "initial run + 2 retries")

	stats := s.GetJobStats()
	assert.Equal(t, 1, stats["flaky"].SuccessCount)
	assert.Equal(t, 1.0, stats["flaky"].SuccessRate)
	assert.Equal(t, 1, stats["broken"].FailureCount)
	assert.NotNil(t, stats["broken"].LastFailure)

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, "transient", history.Results[0].Error)
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.Equal(t, 0.5, h.GetSuccessRate())
}
