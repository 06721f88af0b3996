package state

import (
	"sort"
	"sync"
	"time"

	"archivesync/pkg/models"
)

// MemoryStore keeps run metadata in process memory. It is the store used
// when no database is configured; runs survive for the life of the process
// only.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]models.RunMetadata
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]models.RunMetadata)}
}

// SaveRun inserts or replaces the run record.
func (s *MemoryStore) SaveRun(run models.RunMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// LoadRun returns a copy of the run, or nil when unknown.
func (s *MemoryStore) LoadRun(runID string) (*models.RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest-first.
func (s *MemoryStore) ListRuns(limit int) ([]models.RunMetadata, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	runs := make([]models.RunMetadata, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteRun removes the run record; deleting an unknown run is a no-op.
func (s *MemoryStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

// CleanupOldRuns drops finished runs that started before the cutoff.
func (s *MemoryStore) CleanupOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, run := range s.runs {
		if run.Status == models.RunStatusRunning {
			continue
		}
		if run.StartTime.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
