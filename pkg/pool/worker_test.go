package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"archivesync/pkg/models"
)

func TestWorkerPoolRunsJobs(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 4)

	for i := 0; i < 10; i++ {
		ok := wp.Submit(func(ctx context.Context) models.TransferOutcome {
			return models.TransferOutcome{Status: models.OutcomeSuccess, Bytes: 1}
		})
		assert.True(t, ok)
	}

	go wp.Stop()

	var outcomes []models.TransferOutcome
	for outcome := range wp.Results() {
		outcomes = append(outcomes, outcome)
	}

	assert.Len(t, outcomes, 10)
	stats := wp.Stats()
	assert.Equal(t, int64(10), stats.TotalJobs)
	assert.Equal(t, int64(0), stats.FailedJobs)
	assert.InDelta(t, 100.0, stats.SuccessRate, 0.001)
}

func TestWorkerPoolCountsFailures(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 2)

	for i := 0; i < 4; i++ {
		failed := i%2 == 0
		wp.Submit(func(ctx context.Context) models.TransferOutcome {
			if failed {
				return models.TransferOutcome{Status: models.OutcomeFailed, Error: "tool exited 1"}
			}
			return models.TransferOutcome{Status: models.OutcomeSuccess}
		})
	}

	go wp.Stop()
	count := 0
	for range wp.Results() {
		count++
	}

	assert.Equal(t, 4, count)
	assert.Equal(t, int64(2), wp.Stats().FailedJobs)
}

func TestWorkerPoolShutdownStopsSubmit(t *testing.T) {
	wp := NewWorkerPool(context.Background(), 1)
	wp.Shutdown()

	// After shutdown the pool refuses new work rather than blocking.
	deadline := time.After(time.Second)
	done := make(chan bool, 1)
	go func() {
		done <- wp.Submit(func(ctx context.Context) models.TransferOutcome {
			return models.TransferOutcome{}
		})
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-deadline:
		t.Fatal("Submit blocked after Shutdown")
	}
}

func TestWorkerPoolJobSeesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wp := NewWorkerPool(ctx, 1)

	started := make(chan struct{})
	wp.Submit(func(jobCtx context.Context) models.TransferOutcome {
		close(started)
		<-jobCtx.Done()
		return models.TransferOutcome{Status: models.OutcomeError, Error: jobCtx.Err().Error()}
	})

	<-started
	cancel()

	// The worker exits on cancellation without deadlocking.
	finished := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after cancel")
	}

	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatalf("unexpected ctx error: %v", ctx.Err())
	}
}

func TestBufferPoolReuse(t *testing.T) {
	bp := NewBufferPool(1024)

	buf := bp.Get()
	assert.Len(t, buf, 1024)
	bp.Put(buf)

	// Wrong-size buffers are rejected instead of poisoning the pool.
	bp.Put(make([]byte, 10))

	stats := bp.Stats()
	assert.Equal(t, int64(1), stats.Acquired)
	assert.Equal(t, int64(1), stats.Recycled)
}
