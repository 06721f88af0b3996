package config

import (
	"errors"
	"fmt"
	"time"

	"archivesync/pkg/models"
)

// Static errors for configuration validation
var (
	ErrNoMarkets             = errors.New("at least one market is required")
	ErrUnknownMarket         = errors.New("unknown market")
	ErrNoSymbols             = errors.New("at least one symbol is required for every selected market")
	ErrNoDataTypes           = errors.New("at least one data type is required")
	ErrUnknownDataType       = errors.New("unknown data type")
	ErrStartDateRequired     = errors.New("start date is required")
	ErrEndDateRequired       = errors.New("end date is required")
	ErrStartDateInvalid      = errors.New("invalid start date format")
	ErrEndDateInvalid        = errors.New("invalid end date format")
	ErrDateRangeInverted     = errors.New("end date must not be before start date")
	ErrOperationModeInvalid  = errors.New("operation mode must be one of: auto, direct_sync, traditional")
	ErrDirectSyncNeedsBucket = errors.New("direct_sync mode requires a destination bucket")
	ErrConcurrencyRange      = errors.New("concurrency must be between 1 and 128")
	ErrBatchSizeRange        = errors.New("batch size must be between 1 and 10000")
	ErrRetryCountRange       = errors.New("retry count must be between 1 and 10")
	ErrDestinationKind       = errors.New("destination kind must be one of: local, s3, gcs")
	ErrLocalRootRequired     = errors.New("local destination requires a root directory")
	ErrDestBucketRequired    = errors.New("remote destination requires a bucket")
	ErrSourceBucketRequired  = errors.New("source bucket is required")
	ErrServerPortInvalid     = errors.New("server port must be between 1 and 65535")
)

// Destination kinds.
const (
	DestLocal = "local"
	DestS3    = "s3"
	DestGCS   = "gcs"
)

// Config describes one collection run plus the process-level settings the
// server and CLI share. Zero values are filled by ApplyDefaults before
// Validate runs.
type Config struct {
	Markets       []string
	Symbols       map[string][]string // per market; key "" applies to every market
	DataTypes     []string
	StartDate     string // YYYY-MM-DD inclusive
	EndDate       string // YYYY-MM-DD inclusive
	ForceUpdate   bool
	OperationMode string
	Concurrency   int
	BatchSize     int
	Timeout       time.Duration // per transfer / per batch invocation
	RetryCount    int
	ToolPath      string // bulk transfer tool binary, looked up on PATH
	VerifyChecksums bool
	Zone          string
	MatrixPath    string // optional JSON matrix overriding the built-in catalog
	Source        SourceConfig
	Destination   DestinationConfig
	Database      DatabaseConfig
	Server        ServerConfig
}

// SourceConfig locates the public archive.
type SourceConfig struct {
	Bucket   string // S3 bucket name backing the archive
	BaseURL  string // HTTPS front of the same bucket
	Endpoint string // optional S3 API endpoint override
	Region   string
}

// DestinationConfig locates where archives are materialized.
type DestinationConfig struct {
	Kind            string // local, s3 or gcs; inferred when empty
	LocalRoot       string
	Bucket          string
	Prefix          string
	Endpoint        string // S3-compatible endpoint override
	Region          string
	AccessKey       string
	SecretKey       string
	CredentialsFile string // GCS service-account JSON key
	CreateBucket    bool   // create the destination bucket when missing
}

// DatabaseConfig configures the optional run-metadata store.
type DatabaseConfig struct {
	Driver string // "postgres"; empty disables persistence
	DSN    string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int
}

// ApplyDefaults fills unset fields with the standard defaults.
func (c *Config) ApplyDefaults() {
	if c.Source.Bucket == "" {
		c.Source.Bucket = "data.binance.vision"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://data.binance.vision"
	}
	if c.Source.Region == "" {
		c.Source.Region = "ap-northeast-1"
	}
	if c.Destination.Kind == "" {
		if c.Destination.Bucket != "" {
			c.Destination.Kind = DestS3
		} else {
			c.Destination.Kind = DestLocal
		}
	}
	if c.Destination.Kind == DestLocal && c.Destination.LocalRoot == "" {
		c.Destination.LocalRoot = "data"
	}
	if c.OperationMode == "" {
		c.OperationMode = string(models.ModeAuto)
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	if c.ToolPath == "" {
		c.ToolPath = "s5cmd"
	}
	if c.Zone == "" {
		c.Zone = "raw"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate checks the configuration before any transfer begins. The returned
// errors wrap the package sentinels so callers can test with errors.Is.
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return ErrNoMarkets
	}
	for _, m := range c.Markets {
		if _, ok := models.ParseMarket(m); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownMarket, m)
		}
	}
	for _, m := range c.Markets {
		if len(c.SymbolsFor(m)) == 0 {
			return fmt.Errorf("%w: market %q has none", ErrNoSymbols, m)
		}
	}

	if len(c.DataTypes) == 0 {
		return ErrNoDataTypes
	}
	for _, dt := range c.DataTypes {
		if _, ok := models.MapDataType(dt); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
		}
	}

	if c.StartDate == "" {
		return ErrStartDateRequired
	}
	if c.EndDate == "" {
		return ErrEndDateRequired
	}
	start, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStartDateInvalid, err)
	}
	end, err := time.Parse("2006-01-02", c.EndDate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEndDateInvalid, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s > %s", ErrDateRangeInverted, c.StartDate, c.EndDate)
	}

	switch models.OperationMode(c.OperationMode) {
	case models.ModeAuto, models.ModeTraditional:
	case models.ModeDirectSync:
		if !c.DirectSyncAvailable() {
			return ErrDirectSyncNeedsBucket
		}
	default:
		return fmt.Errorf("%w, got %q", ErrOperationModeInvalid, c.OperationMode)
	}

	if c.Concurrency < 1 || c.Concurrency > 128 {
		return fmt.Errorf("%w, got %d", ErrConcurrencyRange, c.Concurrency)
	}
	if c.BatchSize < 1 || c.BatchSize > 10000 {
		return fmt.Errorf("%w, got %d", ErrBatchSizeRange, c.BatchSize)
	}
	if c.RetryCount < 1 || c.RetryCount > 10 {
		return fmt.Errorf("%w, got %d", ErrRetryCountRange, c.RetryCount)
	}

	if c.Source.Bucket == "" {
		return ErrSourceBucketRequired
	}

	switch c.Destination.Kind {
	case DestLocal:
		if c.Destination.LocalRoot == "" {
			return ErrLocalRootRequired
		}
	case DestS3, DestGCS:
		if c.Destination.Bucket == "" {
			return fmt.Errorf("%w (kind %s)", ErrDestBucketRequired, c.Destination.Kind)
		}
	default:
		return fmt.Errorf("%w, got %q", ErrDestinationKind, c.Destination.Kind)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w, got %d", ErrServerPortInvalid, c.Server.Port)
	}

	return nil
}

// SymbolsFor returns the configured symbols for a market, combining the
// market's own list with the catch-all "" entry.
func (c *Config) SymbolsFor(market string) []string {
	var out []string
	out = append(out, c.Symbols[market]...)
	if market != "" {
		out = append(out, c.Symbols[""]...)
	}
	return out
}

// DirectSyncAvailable reports whether a remote-to-remote copy target exists.
// Only S3-compatible destinations can be written by the bulk tool.
func (c *Config) DirectSyncAvailable() bool {
	return c.Destination.Kind == DestS3 && c.Destination.Bucket != ""
}

// DestinationRoot renders the run's destination root for summaries.
func (c *Config) DestinationRoot() string {
	switch c.Destination.Kind {
	case DestS3:
		return "s3://" + c.Destination.Bucket + "/" + c.Destination.Prefix
	case DestGCS:
		return "gs://" + c.Destination.Bucket + "/" + c.Destination.Prefix
	default:
		return c.Destination.LocalRoot
	}
}

// DateRange returns the parsed inclusive date range. Validate must have
// succeeded first.
func (c *Config) DateRange() (time.Time, time.Time) {
	start, _ := time.Parse("2006-01-02", c.StartDate)
	end, _ := time.Parse("2006-01-02", c.EndDate)
	return start, end
}
