package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v13/screener/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // 처음 n번 실패
	err      error
	calls    atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return j.err
	}
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))
	t.Cleanup(s.Stop)
	return s
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 0 * * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))

	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "c", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("a"))

	// 같은 이름으로 다시 등록 가능
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@daily"}))
}

func TestRunJobSync_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2, err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("flaky")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)
	assert.Equal(t, int32(3), job.calls.Load())
}

func TestRunJobSync_GivesUpAfterMaxRetries(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 100, err: errors.New("boom")}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("broken")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "boom", result.Error)
}

func TestRunJobSync_PermanentErrorIsNotRetried(t *testing.T) {
	s := newTestScheduler(t)
	job := &fakeJob{name: "config", schedule: "@daily", failures: 100, err: Permanent(errors.New("bad taxonomy"))}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("config")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "bad taxonomy", result.Error)
}

func TestRunJobSync_UnknownJob(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.RunJobSync("missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistoryAndStats(t *testing.T) {
	s := newTestScheduler(t)
	ok := &fakeJob{name: "ok", schedule: "@daily"}
	bad := &fakeJob{name: "bad", schedule: "@hourly", failures: 100, err: Permanent(errors.New("nope"))}
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(bad))

	for i := 0; i < 3; i++ {
		_, err := s.RunJobSync("ok")
		require.NoError(t, err)
	}
	_, err := s.RunJobSync("bad")
	require.NoError(t, err)

	history, err := s.GetJobHistory("ok")
	require.NoError(t, err)
	assert.Len(t, history.Results, 3)
	assert.Equal(t, 1.0, history.GetSuccessRate())

	// 반환값은 복사본
	history.Results[0].Success = false
	again, _ := s.GetJobHistory("ok")
	assert.True(t, again.Results[0].Success)

	stats := s.GetJobStats()
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats["ok"].SuccessCount)
	assert.NotNil(t, stats["ok"].LastSuccess)
	assert.Nil(t, stats["ok"].LastFailure)
	assert.Equal(t, 1, stats["bad"].FailureCount)
	assert.Equal(t, "@hourly", stats["bad"].Schedule)

	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestPermanent(t *testing.T) {
	base := errors.New("root")
	err := Permanent(base)

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
}

func TestJobHistoryLatest(t *testing.T) {
	h := &JobHistory{}
	_, ok := h.Last()
	assert.False(t, ok)
	assert.Empty(t, h.GetLatestResults(3))

	h.AddResult(JobResult{JobName: "x", Attempts: 1})
	h.AddResult(JobResult{JobName: "x", Attempts: 2})

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Attempts)
	assert.Len(t, h.GetLatestResults(5), 2)
	assert.Equal(t, 2, h.GetLatestResults(1)[0].Attempts)
}
