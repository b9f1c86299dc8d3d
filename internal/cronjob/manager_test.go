package cronjob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/agentcoreerr"
	"github.com/opencode-ai/agentcore/pkg/types"
)

func TestAddJobComputesNextRun(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "every-minute", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.CronJobActive, job.Status)
	assert.Greater(t, job.NextRunMS, int64(0))
}

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	m := New()
	_, err := m.AddJob(types.CronJob{Name: "bad", Schedule: "not a cron expr", Command: "true"})
	assert.True(t, agentcoreerr.Is(err, agentcoreerr.KindCronJobInvalidSchedule))
}

func TestAddJobRejectsDuplicateName(t *testing.T) {
	m := New()
	_, err := m.AddJob(types.CronJob{Name: "dup", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	_, err = m.AddJob(types.CronJob{Name: "dup", Schedule: "* * * * *", Command: "true"})
	assert.True(t, agentcoreerr.Is(err, agentcoreerr.KindCronJobDuplicateName))
}

func TestGetJobByNameAndList(t *testing.T) {
	m := New()
	added, err := m.AddJob(types.CronJob{Name: "by-name", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	got, err := m.GetJobByName("by-name")
	require.NoError(t, err)
	assert.Equal(t, added.ID, got.ID)

	assert.Len(t, m.ListJobs(), 1)
}

func TestGetJobUnknown(t *testing.T) {
	m := New()
	_, err := m.GetJob("missing")
	assert.True(t, agentcoreerr.Is(err, agentcoreerr.KindCronJobNotFound))
}

func TestUpdateJobRecomputesNextRunOnScheduleChange(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "upd", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	oldNextRun := job.NextRunMS
	job.Schedule = "0 0 * * *"
	updated, err := m.UpdateJob(job)
	require.NoError(t, err)
	assert.NotEqual(t, oldNextRun, updated.NextRunMS)
	assert.Equal(t, "0 0 * * *", updated.Schedule)
}

func TestPauseAndResumeJob(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "pr", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	require.NoError(t, m.PauseJob(job.ID))
	paused, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CronJobPaused, paused.Status)

	require.NoError(t, m.ResumeJob(job.ID))
	resumed, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CronJobActive, resumed.Status)
}

func TestRemoveJob(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "rm", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	require.NoError(t, m.RemoveJob(job.ID))
	_, err = m.GetJob(job.ID)
	assert.Error(t, err)
}

func TestRunJobRecordsSuccessfulExecutionAndEmitsEvents(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "ok", Schedule: "* * * * *", Command: "true", TimeoutMS: 5000})
	require.NoError(t, err)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	require.NoError(t, m.RunJob(context.Background(), job.ID))

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			seen[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.True(t, seen[EventJobStarted])
	assert.True(t, seen[EventJobCompleted])

	history := m.GetHistory(job.ID, 0)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].Err)

	after, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.RunCount)
	assert.Equal(t, 0, after.FailCount)
	assert.Equal(t, types.CronJobActive, after.Status)
}

func TestRunJobRecordsFailureAndEmitsJobFailed(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "fail", Schedule: "* * * * *", Command: "exit 1", TimeoutMS: 5000})
	require.NoError(t, err)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	require.NoError(t, m.RunJob(context.Background(), job.ID))

	var gotFailed bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			if ev.Type == EventJobFailed {
				gotFailed = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.True(t, gotFailed)

	after, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.FailCount)
}

func TestRunJobTimesOut(t *testing.T) {
	m := New()
	job, err := m.AddJob(types.CronJob{Name: "slow", Schedule: "* * * * *", Command: "sleep 2", TimeoutMS: 50})
	require.NoError(t, err)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	require.NoError(t, m.RunJob(context.Background(), job.ID))

	var gotTimeout bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			if ev.Type == EventJobTimeout {
				gotTimeout = true
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.True(t, gotTimeout)

	history := m.GetHistory(job.ID, 0)
	require.Len(t, history, 1)
	assert.True(t, history[0].TimedOut)
}

func TestStartStopScansAndRunsDueJobs(t *testing.T) {
	current := time.Now()
	m := New(WithNow(func() time.Time { return current }))

	job, err := m.AddJob(types.CronJob{Name: "due", Schedule: "* * * * *", Command: "true"})
	require.NoError(t, err)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()
	assert.True(t, m.IsRunning())

	select {
	case ev := <-events:
		assert.Equal(t, EventStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for start event")
	}

	// Force the job due by backdating its next_run (direct store write,
	// since UpdateJob would recompute it from the unchanged schedule) and
	// manually invoke the scan the ticker would otherwise fire on its own.
	due, err := m.GetJob(job.ID)
	require.NoError(t, err)
	due.NextRunMS = current.Add(-time.Minute).UnixMilli()
	require.NoError(t, m.store.Update(due))

	m.scanAndRun(ctx)

	var gotStarted bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			if ev.Type == EventJobStarted {
				gotStarted = true
			}
		case <-time.After(time.Second):
		}
	}
	assert.True(t, gotStarted)
}
