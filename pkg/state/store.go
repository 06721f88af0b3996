package state

import (
	"time"

	"archivesync/pkg/models"
)

// RunStore persists run metadata across process restarts. Implementations
// must be safe for concurrent use; the API server saves from run goroutines
// while handlers read.
type RunStore interface {
	SaveRun(run models.RunMetadata) error
	// LoadRun returns nil without error when the run is unknown.
	LoadRun(runID string) (*models.RunMetadata, error)
	// ListRuns returns runs newest-first, capped at limit (a non-positive
	// limit applies the default cap).
	ListRuns(limit int) ([]models.RunMetadata, error)
	DeleteRun(runID string) error
	// CleanupOldRuns removes finished runs older than the cutoff and
	// reports how many were removed. Running runs are never touched.
	CleanupOldRuns(olderThan time.Duration) (int64, error)
	Close() error
}

// defaultListLimit bounds unpaginated listings.
const defaultListLimit = 1000
