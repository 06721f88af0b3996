package tuning

import (
	"runtime"
	"sync"

	"go.uber.org/zap"

	"archivesync/pkg/models"
)

// Pattern classifies the size distribution of a task population.
type Pattern string

const (
	PatternUnknown    Pattern = "unknown"
	PatternManySmall  Pattern = "many-small"
	PatternMixed      Pattern = "mixed"
	PatternLargeFiles Pattern = "large-files"
)

const (
	smallFileThreshold = 1024 * 1024       // < 1MB
	largeFileThreshold = 100 * 1024 * 1024 // > 100MB

	defaultWorkers   = 8
	defaultBatchSize = 100
	maxBatchSize     = 1000
)

// Tuner derives advisory knob values from the observed workload. Its
// recommendations only apply where the configuration left a knob unset;
// they never override an operator choice.
type Tuner struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	pattern     Pattern
	totalFiles  int64
	totalBytes  int64
	avgFileSize float64
}

// NewTuner creates a tuner.
func NewTuner(logger *zap.Logger) *Tuner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tuner{
		logger:  logger,
		pattern: PatternUnknown,
	}
}

// AnalyzeWorkload classifies the task population by its size distribution.
// Sizes may be estimates; a population with no size information at all
// classifies as unknown and recommendations fall back to the defaults.
func (t *Tuner) AnalyzeWorkload(fileSizes []int64) Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(fileSizes) == 0 {
		t.pattern = PatternUnknown
		return t.pattern
	}

	t.totalFiles = int64(len(fileSizes))

	var total int64
	smallFiles := 0
	largeFiles := 0
	var smallFilesBytes, largeFilesBytes int64

	for _, size := range fileSizes {
		total += size
		if size < smallFileThreshold {
			smallFiles++
			smallFilesBytes += size
		} else if size > largeFileThreshold {
			largeFiles++
			largeFilesBytes += size
		}
	}
	t.totalBytes = total
	t.avgFileSize = float64(total) / float64(len(fileSizes))

	if total == 0 {
		// All sizes unknown: no basis for a recommendation.
		t.pattern = PatternUnknown
		return t.pattern
	}

	smallCountRatio := float64(smallFiles) / float64(t.totalFiles)
	smallSizeRatio := float64(smallFilesBytes) / float64(total)
	largeSizeRatio := float64(largeFilesBytes) / float64(total)

	switch {
	case largeSizeRatio > 0.2:
		t.pattern = PatternLargeFiles
	case smallSizeRatio > 0.8 && smallCountRatio > 0.8:
		t.pattern = PatternManySmall
	default:
		t.pattern = PatternMixed
	}

	t.logger.Debug("workload analyzed",
		zap.String("pattern", string(t.pattern)),
		zap.Int64("files", t.totalFiles),
		zap.Int64("total_bytes", t.totalBytes),
		zap.Float64("small_size_ratio", smallSizeRatio),
		zap.Float64("large_size_ratio", largeSizeRatio))

	return t.pattern
}

// Pattern returns the last classified workload pattern.
func (t *Tuner) Pattern() Pattern {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pattern
}

// RecommendWorkers returns the worker count to use. A configured value wins
// unchanged; otherwise the recommendation follows the workload pattern,
// bounded by max (0 max = twice the CPU count).
func (t *Tuner) RecommendWorkers(configured, max int) int {
	if configured > 0 {
		return configured
	}
	if max <= 0 {
		max = runtime.NumCPU() * 2
	}

	t.mu.RLock()
	pattern := t.pattern
	t.mu.RUnlock()

	var workers int
	switch pattern {
	case PatternManySmall:
		// Small archives are latency-bound; more workers help.
		workers = max
	case PatternLargeFiles:
		workers = defaultWorkers / 2
	default:
		workers = defaultWorkers
	}

	if workers > max {
		workers = max
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// RecommendBatchSize returns the manifest batch size. A configured value
// wins unchanged.
func (t *Tuner) RecommendBatchSize(configured int) int {
	if configured > 0 {
		return configured
	}

	t.mu.RLock()
	pattern := t.pattern
	t.mu.RUnlock()

	switch pattern {
	case PatternManySmall:
		// Large batches amortize tool startup over many small archives.
		return maxBatchSize / 2
	case PatternLargeFiles:
		return defaultBatchSize / 4
	default:
		return defaultBatchSize
	}
}

// EstimateOpsReduced is the informational efficiency metric for direct-sync
// runs: a server-side copy replaces a download plus an upload, saving one
// transfer operation per file. It is a heuristic estimate, never a
// correctness input.
func EstimateOpsReduced(mode models.OperationMode, taskCount int) int {
	if mode != models.ModeDirectSync || taskCount <= 0 {
		return 0
	}
	return taskCount
}
