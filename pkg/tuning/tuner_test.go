package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"archivesync/pkg/models"
)

func TestAnalyzeWorkloadPatterns(t *testing.T) {
	tuner := NewTuner(zap.NewNop())

	assert.Equal(t, PatternUnknown, tuner.AnalyzeWorkload(nil))

	small := make([]int64, 100)
	for i := range small {
		small[i] = 200 * 1024 // 200KB
	}
	assert.Equal(t, PatternManySmall, tuner.AnalyzeWorkload(small))

	withLarge := append(append([]int64{}, small...), 500*1024*1024)
	assert.Equal(t, PatternLargeFiles, tuner.AnalyzeWorkload(withLarge))

	mixed := []int64{500 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 800 * 1024}
	assert.Equal(t, PatternMixed, tuner.AnalyzeWorkload(mixed))

	// No size information at all.
	assert.Equal(t, PatternUnknown, tuner.AnalyzeWorkload(make([]int64, 20)))
	assert.Equal(t, defaultBatchSize, tuner.RecommendBatchSize(0))
}

func TestRecommendWorkersConfiguredWins(t *testing.T) {
	tuner := NewTuner(nil)
	tuner.AnalyzeWorkload([]int64{100, 100, 100})

	assert.Equal(t, 3, tuner.RecommendWorkers(3, 64))
}

func TestRecommendWorkersByPattern(t *testing.T) {
	tuner := NewTuner(nil)

	small := make([]int64, 50)
	for i := range small {
		small[i] = 10 * 1024
	}
	tuner.AnalyzeWorkload(small)
	assert.Equal(t, 32, tuner.RecommendWorkers(0, 32))

	tuner.AnalyzeWorkload([]int64{2 * 1024 * 1024 * 1024})
	got := tuner.RecommendWorkers(0, 32)
	assert.GreaterOrEqual(t, got, 1)
	assert.LessOrEqual(t, got, 4)
}

func TestRecommendWorkersBounds(t *testing.T) {
	tuner := NewTuner(nil)
	got := tuner.RecommendWorkers(0, 0)
	assert.GreaterOrEqual(t, got, 1)
}

func TestRecommendBatchSize(t *testing.T) {
	tuner := NewTuner(nil)

	assert.Equal(t, 42, tuner.RecommendBatchSize(42))
	assert.Equal(t, defaultBatchSize, tuner.RecommendBatchSize(0))

	small := make([]int64, 50)
	for i := range small {
		small[i] = 10 * 1024
	}
	tuner.AnalyzeWorkload(small)
	assert.Equal(t, maxBatchSize/2, tuner.RecommendBatchSize(0))
}

func TestEstimateOpsReduced(t *testing.T) {
	assert.Equal(t, 120, EstimateOpsReduced(models.ModeDirectSync, 120))
	assert.Equal(t, 0, EstimateOpsReduced(models.ModeTraditional, 120))
	assert.Equal(t, 0, EstimateOpsReduced(models.ModeDirectSync, 0))
}
