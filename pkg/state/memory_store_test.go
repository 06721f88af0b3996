package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivesync/pkg/models"
)

func sampleRun(id string, status models.RunStatus, started time.Time) models.RunMetadata {
	return models.RunMetadata{
		ID:              id,
		Status:          status,
		OperationMode:   models.ModeTraditional,
		DestinationRoot: "/data/market",
		StartTime:       started,
		TotalTasks:      10,
		Succeeded:       8,
		Failed:          1,
		Skipped:         1,
		TotalBytes:      1 << 20,
		Sources:         []string{"s3://archive/spot"},
		Destinations:    []string{"/data/market/raw"},
	}
}

func TestMemoryStoreSaveLoadDelete(t *testing.T) {
	store := NewMemoryStore()
	run := sampleRun("run-1", models.RunStatusCompleted, time.Now())

	require.NoError(t, store.SaveRun(run))

	loaded, err := store.LoadRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.Succeeded, loaded.Succeeded)

	missing, err := store.LoadRun("run-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.DeleteRun("run-1"))
	loaded, err = store.LoadRun("run-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	run := sampleRun("run-1", models.RunStatusRunning, time.Now())
	require.NoError(t, store.SaveRun(run))

	run.Status = models.RunStatusCompleted
	run.EndTime = time.Now()
	require.NoError(t, store.SaveRun(run))

	loaded, err := store.LoadRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.RunStatusCompleted, loaded.Status)
	assert.False(t, loaded.EndTime.IsZero())
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := sampleRun(
			string(rune('a'+i)),
			models.RunStatusCompleted,
			base.Add(time.Duration(i)*time.Minute),
		)
		require.NoError(t, store.SaveRun(run))
	}

	runs, err := store.ListRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "e", runs[0].ID)
	assert.Equal(t, "d", runs[1].ID)
	assert.Equal(t, "c", runs[2].ID)
}

func TestMemoryStoreCleanupSparesRunning(t *testing.T) {
	store := NewMemoryStore()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, store.SaveRun(sampleRun("old-done", models.RunStatusCompleted, old)))
	require.NoError(t, store.SaveRun(sampleRun("old-failed", models.RunStatusFailed, old)))
	require.NoError(t, store.SaveRun(sampleRun("old-running", models.RunStatusRunning, old)))
	require.NoError(t, store.SaveRun(sampleRun("fresh", models.RunStatusCompleted, time.Now())))

	removed, err := store.CleanupOldRuns(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	running, err := store.LoadRun("old-running")
	require.NoError(t, err)
	assert.NotNil(t, running)

	fresh, err := store.LoadRun("fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}
