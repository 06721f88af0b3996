package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"archivesync/pkg/models"
	"archivesync/pkg/structures"
)

// Tracker accumulates the outcome counters and metadata of one collection
// run. Record is safe for concurrent use; the batch engine and the worker
// pool both feed it.
type Tracker struct {
	runID           string
	operationMode   models.OperationMode
	destinationRoot string

	totalTasks atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
	totalBytes atomic.Int64

	speeds *structures.RingBuffer

	mu           sync.RWMutex
	status       models.RunStatus
	startTime    time.Time
	endTime      time.Time
	sources      []string
	destinations []string
	errors       []string
}

// NewTracker creates a tracker for a single run.
func NewTracker(runID string, mode models.OperationMode, destinationRoot string) *Tracker {
	return &Tracker{
		runID:           runID,
		operationMode:   mode,
		destinationRoot: destinationRoot,
		speeds:          structures.NewRingBuffer(16),
	}
}

// Start marks the run as running and returns the initial metadata record.
func (t *Tracker) Start() models.RunMetadata {
	t.mu.Lock()
	t.status = models.RunStatusRunning
	t.startTime = time.Now()
	t.mu.Unlock()

	return t.Snapshot()
}

// SetTotal records the task population size once resolution has produced it.
func (t *Tracker) SetTotal(n int64) {
	t.totalTasks.Store(n)
}

// Record folds one transfer outcome into the run counters.
func (t *Tracker) Record(outcome models.TransferOutcome) {
	switch outcome.Status {
	case models.OutcomeSuccess:
		t.succeeded.Add(1)
		t.totalBytes.Add(outcome.Bytes)
	case models.OutcomeSkipped:
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}

	// Throughput sample for the recent-speed window.
	if outcome.Status == models.OutcomeSuccess && outcome.Bytes > 0 && outcome.Duration > 0 {
		t.speeds.Offer(float64(outcome.Bytes) / outcome.Duration.Seconds())
	}

	t.mu.Lock()
	if outcome.SourceURI != "" {
		t.sources = append(t.sources, outcome.SourceURI)
	}
	if outcome.DestURI != "" {
		t.destinations = append(t.destinations, outcome.DestURI)
	}
	if outcome.Error != "" {
		t.errors = append(t.errors, outcome.Error)
	}
	t.mu.Unlock()
}

// Finalize stamps the end time and final status and returns the completed
// metadata record for persistence.
func (t *Tracker) Finalize(status models.RunStatus) models.RunMetadata {
	t.mu.Lock()
	t.status = status
	t.endTime = time.Now()
	t.mu.Unlock()

	return t.Snapshot()
}

// Snapshot returns the current metadata view of the run.
func (t *Tracker) Snapshot() models.RunMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta := models.RunMetadata{
		ID:              t.runID,
		Status:          t.status,
		OperationMode:   t.operationMode,
		DestinationRoot: t.destinationRoot,
		StartTime:       t.startTime,
		EndTime:         t.endTime,
		TotalTasks:      t.totalTasks.Load(),
		Succeeded:       t.succeeded.Load(),
		Failed:          t.failed.Load(),
		Skipped:         t.skipped.Load(),
		TotalBytes:      t.totalBytes.Load(),
		Sources:         append([]string(nil), t.sources...),
		Destinations:    append([]string(nil), t.destinations...),
		Errors:          append([]string(nil), t.errors...),
	}
	return meta
}

// Summary derives the caller-facing summary from the current counters.
func (t *Tracker) Summary() models.RunSummary {
	meta := t.Snapshot()

	var successRate float64
	if meta.TotalTasks > 0 {
		successRate = float64(meta.Succeeded) / float64(meta.TotalTasks) * 100
	}

	end := meta.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	var duration float64
	if !meta.StartTime.IsZero() {
		duration = end.Sub(meta.StartTime).Seconds()
	}

	return models.RunSummary{
		RunID:           meta.ID,
		Status:          meta.Status,
		OperationMode:   meta.OperationMode,
		TotalTasks:      meta.TotalTasks,
		SuccessfulTasks: meta.Succeeded,
		FailedTasks:     meta.Failed,
		SkippedTasks:    meta.Skipped,
		TotalBytes:      meta.TotalBytes,
		SuccessRate:     successRate,
		DurationSeconds: duration,
		DestinationRoot: meta.DestinationRoot,
	}
}

// Errors returns the collected error messages.
func (t *Tracker) Errors() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.errors...)
}

// FormatProgress formats the live run state as a single status line.
func (t *Tracker) FormatProgress() string {
	total := t.totalTasks.Load()
	done := t.succeeded.Load() + t.failed.Load() + t.skipped.Load()

	progressPct := 0.0
	if total > 0 {
		progressPct = float64(done) / float64(total) * 100
	}

	return fmt.Sprintf(
		"Progress: %.1f%% (%d/%d tasks, %.1f MB) | Speed: %.1f MB/s | Failed: %d | Skipped: %d",
		progressPct,
		done,
		total,
		float64(t.totalBytes.Load())/(1024*1024),
		t.speeds.Mean()/(1024*1024),
		t.failed.Load(),
		t.skipped.Load(),
	)
}
