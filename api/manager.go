package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/models"
	"archivesync/pkg/state"
)

// ErrRunNotFound marks a run ID with no live run and no stored record.
var ErrRunNotFound = errors.New("run not found")

// CollectionService is the slice of the collector the API depends on.
type CollectionService interface {
	RunWithID(ctx context.Context, cfg *config.Config, runID string) (models.RunSummary, error)
	SyncPrefix(ctx context.Context, cfg *config.Config, source, dest string, deleteRemoved bool) error
}

// RunManager owns the live collection runs: one cancel func per run, with
// the store as the durable record. Progress is read from the store; the
// live map only answers "is it still going" and "stop it".
type RunManager struct {
	mu      sync.RWMutex
	live    map[string]*liveRun
	service CollectionService
	store   state.RunStore
	logger  *zap.Logger
}

type liveRun struct {
	ID        string
	StartedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRunManager creates a manager and reconciles the store: rows still
// marked running belong to a previous process and are flipped to failed.
func NewRunManager(service CollectionService, store state.RunStore, logger *zap.Logger) *RunManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &RunManager{
		live:    make(map[string]*liveRun),
		service: service,
		store:   store,
		logger:  logger,
	}
	m.recoverOrphans()
	return m
}

// Start validates the config and launches the run in the background. The
// returned ID is immediately pollable.
func (m *RunManager) Start(cfg *config.Config) (string, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	run := &liveRun{
		ID:        runID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.mu.Lock()
	m.live[runID] = run
	m.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.live, runID)
			m.mu.Unlock()
			close(run.done)
		}()
		if _, err := m.service.RunWithID(ctx, cfg, runID); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("collection run returned error",
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()
	return runID, nil
}

// Wait blocks until the run leaves the live map. Unknown or already
// finished IDs return immediately.
func (m *RunManager) Wait(ctx context.Context, id string) error {
	m.mu.RLock()
	run, live := m.live[id]
	m.mu.RUnlock()
	if !live {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the run record, preferring the store. A run that has not
// persisted its first snapshot yet is answered from the live map.
func (m *RunManager) Get(id string) (models.RunMetadata, error) {
	if m.store != nil {
		meta, err := m.store.LoadRun(id)
		if err != nil {
			return models.RunMetadata{}, err
		}
		if meta != nil {
			return *meta, nil
		}
	}

	m.mu.RLock()
	run, live := m.live[id]
	m.mu.RUnlock()
	if live {
		return models.RunMetadata{
			ID:        id,
			Status:    models.RunStatusRunning,
			StartTime: run.StartedAt,
		}, nil
	}
	return models.RunMetadata{}, ErrRunNotFound
}

// List returns recent runs, newest first.
func (m *RunManager) List(limit int) ([]models.RunMetadata, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListRuns(limit)
}

// Cancel stops a live run, or deletes the stored record of a finished one.
// The bool reports whether a live run was cancelled.
func (m *RunManager) Cancel(id string) (bool, error) {
	m.mu.RLock()
	run, live := m.live[id]
	m.mu.RUnlock()
	if live {
		run.cancel()
		return true, nil
	}

	if m.store == nil {
		return false, ErrRunNotFound
	}
	meta, err := m.store.LoadRun(id)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, ErrRunNotFound
	}
	return false, m.store.DeleteRun(id)
}

// LiveCount returns the number of runs currently executing.
func (m *RunManager) LiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// StartCleanup begins periodic deletion of finished runs older than
// retention. The loop stops when ctx is cancelled.
func (m *RunManager) StartCleanup(ctx context.Context, interval, retention time.Duration) {
	if m.store == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.store.CleanupOldRuns(retention)
				if err != nil {
					m.logger.Warn("run cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					m.logger.Info("cleaned up old runs", zap.Int64("removed", n))
				}
			}
		}
	}()
}

// recoverOrphans flips leftover running rows to failed. A run can only be
// running while this process holds its cancel func; anything else is debris
// from a crash or restart.
func (m *RunManager) recoverOrphans() {
	if m.store == nil {
		return
	}
	runs, err := m.store.ListRuns(0)
	if err != nil {
		m.logger.Warn("failed to list runs for orphan recovery", zap.Error(err))
		return
	}
	for _, run := range runs {
		if run.Status != models.RunStatusRunning {
			continue
		}
		run.Status = models.RunStatusFailed
		run.EndTime = time.Now()
		run.Errors = append(run.Errors, "run interrupted by process restart")
		if err := m.store.SaveRun(run); err != nil {
			m.logger.Warn("failed to mark orphaned run",
				zap.String("run_id", run.ID),
				zap.Error(err))
			continue
		}
		m.logger.Info("marked orphaned run as failed", zap.String("run_id", run.ID))
	}
}
