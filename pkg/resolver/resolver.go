package resolver

import (
	"time"

	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/matrix"
	"archivesync/pkg/models"
)

// DefaultExchange names the archive source on every task.
const DefaultExchange = "binance"

// ResolveStats counts what happened during task expansion. Dropped entries
// and intervals are warnings, never run failures.
type ResolveStats struct {
	MatchedEntries   int
	DroppedEntries   int
	DroppedIntervals int
	SkippedMonthly   int
	Tasks            int
}

// TaskResolver expands the availability matrix against a run configuration
// into the flat, deterministic task list the rest of the pipeline consumes.
type TaskResolver struct {
	matrix *matrix.Matrix
	logger *zap.Logger
	now    func() time.Time
}

// NewTaskResolver creates a resolver over a loaded matrix.
func NewTaskResolver(m *matrix.Matrix, logger *zap.Logger) *TaskResolver {
	return &TaskResolver{matrix: m, logger: logger, now: time.Now}
}

// WithClock overrides the current-time source. Tests use this to pin the
// current-month monthly exclusion.
func (r *TaskResolver) WithClock(now func() time.Time) *TaskResolver {
	r.now = now
	return r
}

// catalogRow is a matrix entry that survived sanitation, with its enums
// already parsed.
type catalogRow struct {
	entry    matrix.Entry
	market   models.Market
	dataType models.DataType
}

// sanitize drops malformed or unrecognized matrix entries with a warning.
// A bad row never aborts the run.
func (r *TaskResolver) sanitize(stats *ResolveStats) []catalogRow {
	rows := make([]catalogRow, 0, r.matrix.Len())
	for _, entry := range r.matrix.Entries {
		if entry.Market == "" || entry.DataType == "" || len(entry.Partitions) == 0 {
			stats.DroppedEntries++
			r.logger.Warn("skipping malformed matrix entry",
				zap.String("market", entry.Market),
				zap.String("data_type", entry.DataType))
			continue
		}
		market, ok := models.ParseMarket(entry.Market)
		if !ok {
			stats.DroppedEntries++
			r.logger.Warn("unknown market in matrix entry, dropping",
				zap.String("market", entry.Market),
				zap.String("data_type", entry.DataType))
			continue
		}
		dataType, ok := models.MapDataType(entry.DataType)
		if !ok {
			stats.DroppedEntries++
			r.logger.Warn("unknown archive data type, dropping matrix entry",
				zap.String("market", entry.Market),
				zap.String("data_type", entry.DataType))
			continue
		}
		rows = append(rows, catalogRow{entry: entry, market: market, dataType: dataType})
	}
	return rows
}

// Resolve emits one IngestionTask per (entry, symbol, partition, interval,
// day) combination selected by the configuration. Output order is market,
// then symbol, then partition, then interval, then date; the order carries
// no meaning but is stable for reproducible logs and tests.
func (r *TaskResolver) Resolve(cfg *config.Config) ([]models.IngestionTask, ResolveStats) {
	var stats ResolveStats
	var tasks []models.IngestionTask

	wanted := make(map[models.DataType]bool, len(cfg.DataTypes))
	for _, dt := range cfg.DataTypes {
		if mapped, ok := models.MapDataType(dt); ok {
			wanted[mapped] = true
		}
	}

	rows := r.sanitize(&stats)
	start, end := cfg.DateRange()
	currentYear, currentMonth, _ := r.now().Date()

	for _, marketName := range cfg.Markets {
		market, _ := models.ParseMarket(marketName)
		symbols := cfg.SymbolsFor(marketName)

		for _, row := range rows {
			if row.market != market || !wanted[row.dataType] {
				continue
			}
			stats.MatchedEntries++

			intervals := make([]string, 0, len(row.entry.Intervals))
			for _, interval := range row.entry.Intervals {
				if interval != "" && !models.ValidInterval(interval) {
					stats.DroppedIntervals++
					r.logger.Warn("invalid interval, treating as absent",
						zap.String("interval", interval),
						zap.String("data_type", row.entry.DataType))
					interval = ""
				}
				intervals = append(intervals, interval)
			}
			if len(intervals) == 0 {
				intervals = []string{""}
			}

			partitions := make([]models.PartitionType, 0, len(row.entry.Partitions))
			for _, partition := range row.entry.Partitions {
				partitionType := models.PartitionType(partition)
				if partitionType != models.PartitionDaily && partitionType != models.PartitionMonthly {
					r.logger.Warn("unknown partition granularity, skipping",
						zap.String("partition", partition),
						zap.String("data_type", row.entry.DataType))
					continue
				}
				partitions = append(partitions, partitionType)
			}

			for _, symbol := range symbols {
				for _, partitionType := range partitions {
					for _, interval := range intervals {
						for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
							if partitionType == models.PartitionMonthly {
								y, m, _ := day.Date()
								if y == currentYear && m == currentMonth {
									// The archive never publishes the in-progress month.
									stats.SkippedMonthly++
									continue
								}
							}
							tasks = append(tasks, models.IngestionTask{
								Exchange:        DefaultExchange,
								Market:          market,
								DataType:        row.dataType,
								RawDataType:     row.entry.DataType,
								Symbol:          symbol,
								Interval:        interval,
								PartitionType:   partitionType,
								ArchiveDate:     day.Format("2006-01-02"),
								ForceUpdate:     cfg.ForceUpdate,
								TargetZone:      cfg.Zone,
								URLPattern:      row.entry.URLPattern,
								FilenamePattern: row.entry.FilenamePattern,
							})
						}
					}
				}
			}
		}
	}

	stats.Tasks = len(tasks)
	return tasks, stats
}
