package tasks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunner_RunsJobsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	job := tasks.Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	r := tasks.NewRunner(zap.NewNop(), job)
	r.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestRunner_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	job := tasks.Job{
		Name:     "broken",
		Interval: 5 * time.Millisecond,
		Run:      func(ctx context.Context) error { return errors.New("boom") },
	}

	r := tasks.NewRunner(zap.New(core), job)
	r.Start()
	require.Eventually(t, func() bool { return logs.Len() > 0 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()

	entry := logs.All()[0]
	assert.Equal(t, "job failed", entry.Message)
	assert.Equal(t, "broken", entry.ContextMap()["job"])
}

func TestRunner_SkipsInvalidJobs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := tasks.NewRunner(zap.New(core),
		tasks.Job{Name: "no-interval", Run: func(context.Context) error { return nil }},
		tasks.Job{Name: "no-run", Interval: time.Second},
	)
	r.Start()
	r.Stop()

	assert.Equal(t, 2, logs.FilterMessage("job skipped").Len())
}

type fakeStates struct{ n int64 }

func (f *fakeStates) CleanupExpired(context.Context) (int64, error) { return f.n, nil }

type fakeLogins struct{ cutoff time.Time }

func (f *fakeLogins) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 4, nil
}

func TestOAuthStateCleanupJob(t *testing.T) {
	job := tasks.OAuthStateCleanupJob(&fakeStates{n: 2}, zap.NewNop())
	assert.Equal(t, "oauth-state-cleanup", job.Name)
	assert.Equal(t, time.Hour, job.Interval)
	assert.NoError(t, job.Run(context.Background()))
}

func TestLoginRecordPruneJob_Cutoff(t *testing.T) {
	logins := &fakeLogins{}
	job := tasks.LoginRecordPruneJob(logins, zap.NewNop(), 90*24*time.Hour)

	before := time.Now().UTC().Add(-90 * 24 * time.Hour)
	require.NoError(t, job.Run(context.Background()))
	after := time.Now().UTC().Add(-90 * 24 * time.Hour)

	assert.False(t, logins.cutoff.Before(before))
	assert.False(t, logins.cutoff.After(after))
}

func TestAuditPruneJob_LogsCount(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	events := &fakeLogins{}
	job := tasks.AuditPruneJob(events, zap.New(core), 365*24*time.Hour)
	assert.Equal(t, "audit-prune", job.Name)
	assert.Equal(t, 24*time.Hour, job.Interval)

	require.NoError(t, job.Run(context.Background()))
	assert.WithinDuration(t, time.Now().UTC().Add(-365*24*time.Hour), events.cutoff, time.Minute)
	require.Equal(t, 1, logs.FilterMessage("pruned audit events").Len())
}
