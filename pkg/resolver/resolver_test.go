package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/matrix"
	"archivesync/pkg/models"
)

// fixedClock pins "now" far away from any test date range so the
// current-month exclusion only fires when a test wants it to.
func fixedClock(date string) func() time.Time {
	t, _ := time.Parse("2006-01-02", date)
	return func() time.Time { return t }
}

func testConfig(start, end string) *config.Config {
	cfg := &config.Config{
		Markets:   []string{"spot"},
		Symbols:   map[string][]string{"spot": {"BTCUSDT"}},
		DataTypes: []string{"klines"},
		StartDate: start,
		EndDate:   end,
	}
	cfg.ApplyDefaults()
	return cfg
}

func singleEntryMatrix() *matrix.Matrix {
	return &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"daily"}},
	}}
}

func TestResolveTwoDayScenario(t *testing.T) {
	r := NewTaskResolver(singleEntryMatrix(), zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, stats := r.Resolve(testConfig("2025-07-15", "2025-07-16"))

	require.Len(t, tasks, 2)
	assert.Equal(t, 2, stats.Tasks)
	assert.Equal(t, "2025-07-15", tasks[0].ArchiveDate)
	assert.Equal(t, "2025-07-16", tasks[1].ArchiveDate)
	for _, task := range tasks {
		assert.Equal(t, DefaultExchange, task.Exchange)
		assert.Equal(t, models.MarketSpot, task.Market)
		assert.Equal(t, models.DataTypeKlines, task.DataType)
		assert.Equal(t, "BTCUSDT", task.Symbol)
		assert.Equal(t, "1h", task.Interval)
		assert.Equal(t, models.PartitionDaily, task.PartitionType)
		assert.Equal(t, "raw", task.TargetZone)
	}
}

func TestResolveCountFormula(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h", "1d"}, Partitions: []string{"daily", "monthly"}},
	}}
	cfg := testConfig("2025-07-01", "2025-07-03")
	cfg.Symbols = map[string][]string{"spot": {"BTCUSDT", "ETHUSDT"}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, _ := r.Resolve(cfg)

	// 1 entry x 2 symbols x 2 partitions x 2 intervals x 3 days.
	assert.Len(t, tasks, 24)
}

func TestResolveDeterministicOrder(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"daily"}},
		{Market: "usd-margined-futures", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"daily"}},
	}}
	cfg := testConfig("2025-07-01", "2025-07-02")
	cfg.Markets = []string{"usd-margined-futures", "spot"}
	cfg.Symbols = map[string][]string{"": {"BTCUSDT", "ETHUSDT"}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	first, _ := r.Resolve(cfg)
	second, _ := r.Resolve(cfg)

	require.Equal(t, first, second)

	// Config market order wins, then symbols, then dates.
	assert.Equal(t, models.MarketUSDFutures, first[0].Market)
	assert.Equal(t, "BTCUSDT", first[0].Symbol)
	assert.Equal(t, "2025-07-01", first[0].ArchiveDate)
	assert.Equal(t, "2025-07-02", first[1].ArchiveDate)
	assert.Equal(t, "ETHUSDT", first[2].Symbol)
	assert.Equal(t, models.MarketSpot, first[4].Market)
}

func TestResolveSkipsCurrentMonthMonthly(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"monthly"}},
	}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2025-08-15"))
	tasks, stats := r.Resolve(testConfig("2025-07-30", "2025-08-02"))

	require.Len(t, tasks, 2)
	assert.Equal(t, "2025-07-30", tasks[0].ArchiveDate)
	assert.Equal(t, "2025-07-31", tasks[1].ArchiveDate)
	assert.Equal(t, 2, stats.SkippedMonthly)
}

func TestResolveEndDateInCurrentMonthYieldsNoMonthlyTasks(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"monthly"}},
	}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2025-08-15"))
	tasks, _ := r.Resolve(testConfig("2025-08-01", "2025-08-15"))

	assert.Empty(t, tasks)
}

func TestResolveDropsUnknownDataType(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"daily"}},
		{Market: "spot", DataType: "heatmap", Partitions: []string{"daily"}},
	}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, stats := r.Resolve(testConfig("2025-07-01", "2025-07-01"))

	assert.Len(t, tasks, 1)
	assert.Equal(t, 1, stats.DroppedEntries)
}

func TestResolveSkipsMalformedEntry(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"1h"}, Partitions: []string{"daily"}},
		{Market: "", DataType: "klines", Partitions: []string{"daily"}},
		{Market: "spot", DataType: "trades"}, // no partitions
	}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, stats := r.Resolve(testConfig("2025-07-01", "2025-07-01"))

	assert.Len(t, tasks, 1)
	assert.Equal(t, 2, stats.DroppedEntries)
}

func TestResolveInvalidIntervalTreatedAsAbsent(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "klines", Intervals: []string{"sixty"}, Partitions: []string{"daily"}},
	}}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, stats := r.Resolve(testConfig("2025-07-01", "2025-07-01"))

	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Interval)
	assert.Equal(t, 1, stats.DroppedIntervals)
}

func TestResolveEntryWithoutIntervals(t *testing.T) {
	m := &matrix.Matrix{Entries: []matrix.Entry{
		{Market: "spot", DataType: "trades", Partitions: []string{"daily"}},
	}}
	cfg := testConfig("2025-07-01", "2025-07-02")
	cfg.DataTypes = []string{"trades"}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, _ := r.Resolve(cfg)

	require.Len(t, tasks, 2)
	assert.Empty(t, tasks[0].Interval)
}

func TestResolveForceUpdatePropagates(t *testing.T) {
	cfg := testConfig("2025-07-01", "2025-07-01")
	cfg.ForceUpdate = true

	r := NewTaskResolver(singleEntryMatrix(), zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, _ := r.Resolve(cfg)

	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].ForceUpdate)
}

func TestResolveUnselectedDataTypeIgnored(t *testing.T) {
	m := matrix.Default()
	cfg := testConfig("2025-07-01", "2025-07-01")
	cfg.DataTypes = []string{"trades"}

	r := NewTaskResolver(m, zap.NewNop()).WithClock(fixedClock("2026-01-15"))
	tasks, _ := r.Resolve(cfg)

	// spot trades publishes daily and monthly: one task each.
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, models.DataTypeTrades, task.DataType)
	}
}
