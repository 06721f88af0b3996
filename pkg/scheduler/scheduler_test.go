package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"archivesync/pkg/models"
)

// fakeExecutor records executions and signals each one on a channel.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []Schedule
	err      error
	fired    chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fired: make(chan struct{}, 16)}
}

func (f *fakeExecutor) Execute(ctx context.Context, schedule Schedule) error {
	f.mu.Lock()
	f.executed = append(f.executed, schedule)
	err := f.err
	f.mu.Unlock()
	f.fired <- struct{}{}
	return err
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func waitFired(t *testing.T, exec *fakeExecutor) {
	t.Helper()
	select {
	case <-exec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never fired")
	}
}

func dailySchedule(name string) *Schedule {
	return &Schedule{
		Name:     name,
		CronExpr: "0 2 * * *",
		Enabled:  true,
		Request: models.CollectionRequest{
			Markets:   []string{"spot"},
			Symbols:   map[string][]string{"spot": {"BTCUSDT"}},
			DataTypes: []string{"klines"},
			StartDate: "2024-03-01",
			EndDate:   "2024-03-01",
		},
	}
}

func TestAddAssignsIDAndNextRun(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	schedule := dailySchedule("nightly")
	require.NoError(t, s.Add(schedule))

	assert.NotEmpty(t, schedule.ID)
	assert.False(t, schedule.NextRun.IsZero())
	assert.False(t, schedule.CreatedAt.IsZero())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestAddRejectsBadCronExpr(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	schedule := dailySchedule("broken")
	schedule.CronExpr = "not a cron line"
	err := s.Add(schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestAddRejectsDuplicateID(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	first := dailySchedule("one")
	first.ID = "fixed"
	require.NoError(t, s.Add(first))

	second := dailySchedule("two")
	second.ID = "fixed"
	err := s.Add(second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestDisabledScheduleHasNoCronEntry(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	schedule := dailySchedule("paused")
	schedule.Enabled = false
	require.NoError(t, s.Add(schedule))
	assert.Empty(t, s.cron.Entries())

	require.NoError(t, s.Enable(schedule.ID))
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.Disable(schedule.ID))
	assert.Empty(t, s.cron.Entries())
}

func TestRunNowExecutesAndRecordsSuccess(t *testing.T) {
	exec := newFakeExecutor()
	s := NewScheduler(exec, zap.NewNop())

	schedule := dailySchedule("manual")
	require.NoError(t, s.Add(schedule))
	require.NoError(t, s.RunNow(schedule.ID))
	waitFired(t, exec)

	require.Eventually(t, func() bool {
		got, err := s.Get(schedule.ID)
		return err == nil && got.LastStatus == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	got, err := s.Get(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	assert.Zero(t, got.FailCount)
	assert.False(t, got.LastRun.IsZero())
	assert.Equal(t, "spot", exec.executed[0].Request.Markets[0])
}

func TestRunNowRecordsFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.err = errors.New("archive unreachable")
	s := NewScheduler(exec, zap.NewNop())

	schedule := dailySchedule("failing")
	require.NoError(t, s.Add(schedule))
	require.NoError(t, s.RunNow(schedule.ID))
	waitFired(t, exec)

	require.Eventually(t, func() bool {
		got, err := s.Get(schedule.ID)
		return err == nil && got.FailCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	got, err := s.Get(schedule.ID)
	require.NoError(t, err)
	assert.Contains(t, got.LastStatus, "archive unreachable")
}

func TestRunNowUnknownSchedule(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())
	err := s.RunNow("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpdateKeepsHistory(t *testing.T) {
	exec := newFakeExecutor()
	s := NewScheduler(exec, zap.NewNop())

	schedule := dailySchedule("evolving")
	require.NoError(t, s.Add(schedule))
	require.NoError(t, s.RunNow(schedule.ID))
	waitFired(t, exec)

	require.Eventually(t, func() bool {
		got, _ := s.Get(schedule.ID)
		return got.LastStatus != ""
	}, 2*time.Second, 10*time.Millisecond)

	updated := dailySchedule("evolving")
	updated.ID = schedule.ID
	updated.CronExpr = "30 4 * * *"
	require.NoError(t, s.Update(updated))

	got, err := s.Get(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "30 4 * * *", got.CronExpr)
	assert.Equal(t, 1, got.RunCount)
	assert.Equal(t, "completed", got.LastStatus)
}

func TestRemoveDropsEntry(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	schedule := dailySchedule("ephemeral")
	require.NoError(t, s.Add(schedule))
	require.NoError(t, s.Remove(schedule.ID))

	assert.Empty(t, s.cron.Entries())
	_, err := s.Get(schedule.ID)
	require.Error(t, err)
	require.Error(t, s.Remove(schedule.ID))
}

func TestStatsCountsActive(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	active := dailySchedule("active")
	require.NoError(t, s.Add(active))
	paused := dailySchedule("paused")
	paused.Enabled = false
	require.NoError(t, s.Add(paused))

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalSchedules)
	assert.Equal(t, 1, stats.ActiveSchedules)
	assert.Equal(t, 1, stats.DisabledSchedules)
	assert.False(t, stats.NextRun.IsZero())
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewScheduler(newFakeExecutor(), zap.NewNop())

	require.NoError(t, s.Start())
	require.Error(t, s.Start())
	require.NoError(t, s.Stop())
	require.Error(t, s.Stop())
}
