package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivesync/pkg/models"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker("run-1", models.ModeTraditional, "/data/archives")

	meta := tr.Start()
	assert.Equal(t, "run-1", meta.ID)
	assert.Equal(t, models.RunStatusRunning, meta.Status)
	assert.False(t, meta.StartTime.IsZero())

	tr.SetTotal(3)
	tr.Record(models.TransferOutcome{
		Status:    models.OutcomeSuccess,
		SourceURI: "s3://archive/a.zip",
		DestURI:   "/data/archives/a.zip",
		Bytes:     2048,
		Duration:  time.Second,
	})
	tr.Record(models.TransferOutcome{
		Status:    models.OutcomeSkipped,
		SourceURI: "s3://archive/b.zip",
		DestURI:   "/data/archives/b.zip",
	})
	tr.Record(models.TransferOutcome{
		Status:    models.OutcomeFailed,
		SourceURI: "s3://archive/c.zip",
		DestURI:   "/data/archives/c.zip",
		Error:     "connection reset",
	})

	final := tr.Finalize(models.RunStatusCompleted)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.False(t, final.EndTime.IsZero())
	assert.Equal(t, int64(3), final.TotalTasks)
	assert.Equal(t, int64(1), final.Succeeded)
	assert.Equal(t, int64(1), final.Skipped)
	assert.Equal(t, int64(1), final.Failed)
	assert.Equal(t, int64(2048), final.TotalBytes)
	assert.Equal(t, []string{"connection reset"}, final.Errors)
	assert.Len(t, final.Sources, 3)
	assert.Len(t, final.Destinations, 3)

	// Counter identity: every task accounted for exactly once.
	assert.Equal(t, final.TotalTasks, final.Succeeded+final.Failed+final.Skipped)
}

func TestTrackerSummarySuccessRate(t *testing.T) {
	tr := NewTracker("run-2", models.ModeDirectSync, "s3://dest/archives")
	tr.Start()
	tr.SetTotal(4)

	for i := 0; i < 3; i++ {
		tr.Record(models.TransferOutcome{Status: models.OutcomeSuccess, Bytes: 100, Duration: time.Millisecond})
	}
	tr.Record(models.TransferOutcome{Status: models.OutcomeFailed, Error: "boom"})
	tr.Finalize(models.RunStatusCompleted)

	s := tr.Summary()
	assert.Equal(t, "run-2", s.RunID)
	assert.Equal(t, models.ModeDirectSync, s.OperationMode)
	assert.Equal(t, "s3://dest/archives", s.DestinationRoot)
	assert.InDelta(t, 75.0, s.SuccessRate, 0.001)
	assert.GreaterOrEqual(t, s.DurationSeconds, 0.0)
}

func TestTrackerSummaryZeroTasks(t *testing.T) {
	tr := NewTracker("run-3", models.ModeAuto, "/tmp")
	tr.Start()
	tr.Finalize(models.RunStatusCompleted)

	s := tr.Summary()
	assert.Equal(t, int64(0), s.TotalTasks)
	assert.Equal(t, 0.0, s.SuccessRate)
}

func TestTrackerConcurrentRecord(t *testing.T) {
	tr := NewTracker("run-4", models.ModeTraditional, "/tmp")
	tr.Start()
	tr.SetTotal(200)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				status := models.OutcomeSuccess
				if i%5 == 0 {
					status = models.OutcomeFailed
				}
				tr.Record(models.TransferOutcome{
					Status:    status,
					SourceURI: fmt.Sprintf("s3://archive/%d-%d.zip", w, i),
					Bytes:     10,
					Duration:  time.Millisecond,
					Error:     map[bool]string{true: "err", false: ""}[status == models.OutcomeFailed],
				})
			}
		}(w)
	}
	wg.Wait()

	meta := tr.Finalize(models.RunStatusCompleted)
	require.Equal(t, int64(200), meta.Succeeded+meta.Failed+meta.Skipped)
	assert.Equal(t, int64(40), meta.Failed)
	assert.Equal(t, int64(160), meta.Succeeded)
}

func TestTrackerFormatProgress(t *testing.T) {
	tr := NewTracker("run-5", models.ModeTraditional, "/tmp")
	tr.Start()
	tr.SetTotal(2)
	tr.Record(models.TransferOutcome{Status: models.OutcomeSuccess, Bytes: 1024 * 1024, Duration: time.Second})

	line := tr.FormatProgress()
	assert.Contains(t, line, "50.0%")
	assert.Contains(t, line, "1/2 tasks")
}
