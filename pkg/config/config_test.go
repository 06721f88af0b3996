package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Markets:   []string{"spot"},
		Symbols:   map[string][]string{"spot": {"BTCUSDT"}},
		DataTypes: []string{"klines"},
		StartDate: "2025-07-01",
		EndDate:   "2025-07-31",
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "data.binance.vision", cfg.Source.Bucket)
	assert.Equal(t, "https://data.binance.vision", cfg.Source.BaseURL)
	assert.Equal(t, DestLocal, cfg.Destination.Kind)
	assert.Equal(t, "data", cfg.Destination.LocalRoot)
	assert.Equal(t, "auto", cfg.OperationMode)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, "s5cmd", cfg.ToolPath)
	assert.Equal(t, "raw", cfg.Zone)
}

func TestApplyDefaultsInfersS3Kind(t *testing.T) {
	cfg := &Config{Destination: DestinationConfig{Bucket: "lake"}}
	cfg.ApplyDefaults()
	assert.Equal(t, DestS3, cfg.Destination.Kind)
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"no markets", func(c *Config) { c.Markets = nil }, ErrNoMarkets},
		{"unknown market", func(c *Config) { c.Markets = []string{"margin"} }, ErrUnknownMarket},
		{"no symbols", func(c *Config) { c.Symbols = nil }, ErrNoSymbols},
		{"no data types", func(c *Config) { c.DataTypes = nil }, ErrNoDataTypes},
		{"unknown data type", func(c *Config) { c.DataTypes = []string{"heatmap"} }, ErrUnknownDataType},
		{"missing start", func(c *Config) { c.StartDate = "" }, ErrStartDateRequired},
		{"missing end", func(c *Config) { c.EndDate = "" }, ErrEndDateRequired},
		{"bad start", func(c *Config) { c.StartDate = "07/01/2025" }, ErrStartDateInvalid},
		{"bad end", func(c *Config) { c.EndDate = "2025-13-40" }, ErrEndDateInvalid},
		{"inverted range", func(c *Config) { c.StartDate, c.EndDate = "2025-07-31", "2025-07-01" }, ErrDateRangeInverted},
		{"bad mode", func(c *Config) { c.OperationMode = "turbo" }, ErrOperationModeInvalid},
		{"direct sync without bucket", func(c *Config) { c.OperationMode = "direct_sync" }, ErrDirectSyncNeedsBucket},
		{"concurrency too high", func(c *Config) { c.Concurrency = 500 }, ErrConcurrencyRange},
		{"batch size negative", func(c *Config) { c.BatchSize = -1 }, ErrBatchSizeRange},
		{"retries too high", func(c *Config) { c.RetryCount = 99 }, ErrRetryCountRange},
		{"bad destination kind", func(c *Config) { c.Destination.Kind = "ftp" }, ErrDestinationKind},
		{"local without root", func(c *Config) { c.Destination.LocalRoot = "" }, ErrLocalRootRequired},
		{"s3 without bucket", func(c *Config) { c.Destination.Kind = DestS3 }, ErrDestBucketRequired},
		{"gcs without bucket", func(c *Config) { c.Destination.Kind = DestGCS }, ErrDestBucketRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSymbolsFor(t *testing.T) {
	cfg := &Config{Symbols: map[string][]string{
		"spot": {"BTCUSDT"},
		"":     {"ETHUSDT"},
	}}

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.SymbolsFor("spot"))
	assert.Equal(t, []string{"ETHUSDT"}, cfg.SymbolsFor("options"))
}

func TestDirectSyncAvailable(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.DirectSyncAvailable())

	cfg.Destination.Kind = DestS3
	cfg.Destination.Bucket = "lake"
	assert.True(t, cfg.DirectSyncAvailable())

	cfg.Destination.Kind = DestGCS
	assert.False(t, cfg.DirectSyncAvailable())
}

func TestDestinationRoot(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "data", cfg.DestinationRoot())

	cfg.Destination = DestinationConfig{Kind: DestS3, Bucket: "lake", Prefix: "market"}
	assert.Equal(t, "s3://lake/market", cfg.DestinationRoot())

	cfg.Destination = DestinationConfig{Kind: DestGCS, Bucket: "lake", Prefix: "market"}
	assert.Equal(t, "gs://lake/market", cfg.DestinationRoot())
}
