package models

import "time"

// Market identifies an archive market section.
type Market string

const (
	MarketSpot        Market = "spot"
	MarketUSDFutures  Market = "usd-margined-futures"
	MarketCoinFutures Market = "coin-margined-futures"
	MarketOptions     Market = "options"
)

// ArchivePath returns the market's path segment inside the archive.
func (m Market) ArchivePath() string {
	switch m {
	case MarketSpot:
		return "data/spot"
	case MarketUSDFutures:
		return "data/futures/um"
	case MarketCoinFutures:
		return "data/futures/cm"
	case MarketOptions:
		return "data/option"
	default:
		return "data/" + string(m)
	}
}

// ParseMarket maps a configured market name to a Market.
func ParseMarket(s string) (Market, bool) {
	switch Market(s) {
	case MarketSpot, MarketUSDFutures, MarketCoinFutures, MarketOptions:
		return Market(s), true
	}
	// Short aliases used by the archive's own folder layout.
	switch s {
	case "um", "futures/um":
		return MarketUSDFutures, true
	case "cm", "futures/cm":
		return MarketCoinFutures, true
	case "option":
		return MarketOptions, true
	}
	return "", false
}

// DataType identifies a kind of archived dataset.
type DataType string

const (
	DataTypeKlines             DataType = "klines"
	DataTypeTrades             DataType = "trades"
	DataTypeAggTrades          DataType = "aggTrades"
	DataTypeFundingRate        DataType = "fundingRate"
	DataTypeLiquidation        DataType = "liquidation"
	DataTypeOrderBookDepth     DataType = "orderBookDepth"
	DataTypeBookTicker         DataType = "bookTicker"
	DataTypeVolatilityIndex    DataType = "volatilityIndex"
	DataTypeSummary            DataType = "summary"
	DataTypeMarkPriceKlines    DataType = "markPriceKlines"
	DataTypeIndexPriceKlines   DataType = "indexPriceKlines"
	DataTypePremiumIndexKlines DataType = "premiumIndexKlines"
)

// archiveDataTypes maps the archive's free-form folder names to data types.
var archiveDataTypes = map[string]DataType{
	"klines":              DataTypeKlines,
	"trades":              DataTypeTrades,
	"aggTrades":           DataTypeAggTrades,
	"fundingRate":         DataTypeFundingRate,
	"liquidationSnapshot": DataTypeLiquidation,
	"bookDepth":           DataTypeOrderBookDepth,
	"bookTicker":          DataTypeBookTicker,
	"BVOLIndex":           DataTypeVolatilityIndex,
	"EOHSummary":          DataTypeSummary,
	"markPriceKlines":     DataTypeMarkPriceKlines,
	"indexPriceKlines":    DataTypeIndexPriceKlines,
	"premiumIndexKlines":  DataTypePremiumIndexKlines,
}

// MapDataType maps an archive data-type string to the internal enum.
// Unknown strings return ok=false; callers drop the entry with a warning.
func MapDataType(archive string) (DataType, bool) {
	if dt, ok := archiveDataTypes[archive]; ok {
		return dt, true
	}
	// Accept the enum spelling itself so configs may use either form.
	for _, dt := range archiveDataTypes {
		if string(dt) == archive {
			return dt, true
		}
	}
	return "", false
}

// ArchiveName returns the archive's folder name for the data type.
func (d DataType) ArchiveName() string {
	for name, dt := range archiveDataTypes {
		if dt == d {
			return name
		}
	}
	return string(d)
}

// PartitionType is the archive publication granularity.
type PartitionType string

const (
	PartitionDaily   PartitionType = "daily"
	PartitionMonthly PartitionType = "monthly"
)

// OperationMode selects the transfer strategy for a run.
type OperationMode string

const (
	ModeAuto        OperationMode = "auto"
	ModeDirectSync  OperationMode = "direct_sync"
	ModeTraditional OperationMode = "traditional"
)

// RunStatus represents the lifecycle state of a collection run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// OutcomeStatus classifies the result of one transfer request.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped-cached"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeError   OutcomeStatus = "error"
)

// IngestionTask is one concrete unit of collection work. It is fully
// populated at creation time, including the matrix metadata the path
// resolver needs, and never mutated afterwards.
type IngestionTask struct {
	Exchange        string        `json:"exchange"`
	Market          Market        `json:"market"`
	DataType        DataType      `json:"data_type"`
	RawDataType     string        `json:"raw_data_type"` // archive folder spelling
	Symbol          string        `json:"symbol"`
	Interval        string        `json:"interval,omitempty"` // empty = data type has no interval axis
	PartitionType   PartitionType `json:"partition_type"`
	ArchiveDate     string        `json:"archive_date"` // nominal day, YYYY-MM-DD
	ForceUpdate     bool          `json:"force_update"`
	TargetZone      string        `json:"target_zone"`
	URLPattern      string        `json:"url_pattern,omitempty"`
	FilenamePattern string        `json:"filename_pattern,omitempty"`
}

// TransferRequest is a path-resolved task: one source, one destination.
type TransferRequest struct {
	Task       IngestionTask `json:"task"`
	SourcePath string        `json:"source_path"` // relative path inside the archive
	SourceURI  string        `json:"source_uri"`  // s3://bucket/path form
	SourceURL  string        `json:"source_url"`  // https form for streamed downloads
	DestPath   string        `json:"dest_path"`   // relative path inside the destination
	DestURI    string        `json:"dest_uri"`    // absolute destination (file path or remote URI)
}

// TransferOutcome is the result of attempting one TransferRequest.
type TransferOutcome struct {
	Status    OutcomeStatus `json:"status"`
	SourceURI string        `json:"source_uri"`
	DestURI   string        `json:"dest_uri"`
	Bytes     int64         `json:"bytes"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunMetadata is the run-scoped aggregate record, persisted at run end.
type RunMetadata struct {
	ID              string        `json:"id"`
	Status          RunStatus     `json:"status"`
	OperationMode   OperationMode `json:"operation_mode"`
	DestinationRoot string        `json:"destination_root"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	TotalTasks      int64         `json:"total_tasks"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	Skipped         int64         `json:"skipped"`
	TotalBytes      int64         `json:"total_bytes"`
	Sources         []string      `json:"sources"`
	Destinations    []string      `json:"destinations"`
	Errors          []string      `json:"errors"`
}

// RunSummary is the synchronous result returned to the caller of a run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Status          RunStatus     `json:"status"`
	OperationMode   OperationMode `json:"operation_mode"`
	TotalTasks      int64         `json:"total_tasks"`
	SuccessfulTasks int64         `json:"successful_tasks"`
	FailedTasks     int64         `json:"failed_tasks"`
	SkippedTasks    int64         `json:"skipped_tasks"`
	TotalBytes      int64         `json:"total_bytes"`
	SuccessRate     float64       `json:"success_rate_percent"`
	DurationSeconds float64       `json:"duration_seconds"`
	DestinationRoot string        `json:"destination_root"`
}

// CollectionRequest is the API payload that starts a collection run.
type CollectionRequest struct {
	Markets        []string            `json:"markets"`
	Symbols        map[string][]string `json:"symbols"` // per market; key "" applies to all
	DataTypes      []string            `json:"data_types"`
	StartDate      string              `json:"start_date"` // YYYY-MM-DD inclusive
	EndDate        string              `json:"end_date"`   // YYYY-MM-DD inclusive
	ForceUpdate    bool                `json:"force_update"`
	OperationMode  string              `json:"operation_mode,omitempty"` // auto, direct_sync, traditional
	Concurrency    int                 `json:"concurrency,omitempty"`
	BatchSize      int                 `json:"batch_size,omitempty"`
	TimeoutSeconds int                 `json:"timeout_seconds,omitempty"` // per transfer
}

// SyncRequest is the API payload for an explicit whole-prefix replication.
type SyncRequest struct {
	SourcePrefix   string `json:"source_prefix"`
	DestPrefix     string `json:"dest_prefix"`
	DeleteRemoved  bool   `json:"delete_removed"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ObjectInfo describes one stored object at source or destination.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
