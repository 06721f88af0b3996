package resolver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivesync/pkg/config"
	"archivesync/pkg/layout"
	"archivesync/pkg/models"
)

func localPathResolver() *PathResolver {
	cfg := &config.Config{
		Markets:   []string{"spot"},
		Symbols:   map[string][]string{"spot": {"BTCUSDT"}},
		DataTypes: []string{"klines"},
		StartDate: "2025-07-01",
		EndDate:   "2025-07-31",
	}
	cfg.Destination.LocalRoot = "/lake"
	cfg.ApplyDefaults()
	return NewPathResolver(layout.New(), cfg)
}

func klineTask() models.IngestionTask {
	return models.IngestionTask{
		Exchange:      DefaultExchange,
		Market:        models.MarketSpot,
		DataType:      models.DataTypeKlines,
		RawDataType:   "klines",
		Symbol:        "BTCUSDT",
		Interval:      "1h",
		PartitionType: models.PartitionDaily,
		ArchiveDate:   "2025-07-15",
		TargetZone:    "raw",
	}
}

func TestResolveDailyKline(t *testing.T) {
	req, err := localPathResolver().Resolve(klineTask())
	require.NoError(t, err)

	assert.Equal(t, "data/spot/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2025-07-15.zip", req.SourcePath)
	assert.Equal(t, "s3://data.binance.vision/data/spot/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2025-07-15.zip", req.SourceURI)
	assert.Equal(t, "https://data.binance.vision/data/spot/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2025-07-15.zip", req.SourceURL)
	assert.Equal(t, "raw/exchange=binance/type=klines/market=spot/symbol=BTCUSDT/date=2025-07-15/BTCUSDT-1h-2025-07-15.zip", req.DestPath)
	assert.Equal(t, filepath.FromSlash("/lake/raw/exchange=binance/type=klines/market=spot/symbol=BTCUSDT/date=2025-07-15/BTCUSDT-1h-2025-07-15.zip"), req.DestURI)
}

func TestResolveIsPure(t *testing.T) {
	r := localPathResolver()
	first, err := r.Resolve(klineTask())
	require.NoError(t, err)
	second, err := r.Resolve(klineTask())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveMonthlyUsesPreviousMonth(t *testing.T) {
	task := klineTask()
	task.PartitionType = models.PartitionMonthly

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)

	assert.Equal(t, "data/spot/monthly/klines/BTCUSDT/1h/BTCUSDT-1h-2025-06.zip", req.SourcePath)
	assert.Contains(t, req.DestPath, "date=2025-06")
}

func TestResolveMonthlyYearBoundary(t *testing.T) {
	task := klineTask()
	task.PartitionType = models.PartitionMonthly
	task.ArchiveDate = "2025-01-10"

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)
	assert.Contains(t, req.SourcePath, "BTCUSDT-1h-2024-12.zip")
}

func TestResolveNoIntervalUsesDataType(t *testing.T) {
	task := klineTask()
	task.DataType = models.DataTypeTrades
	task.RawDataType = "trades"
	task.Interval = ""

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)

	assert.Equal(t, "data/spot/daily/trades/BTCUSDT/BTCUSDT-trades-2025-07-15.zip", req.SourcePath)
}

func TestResolveInvalidIntervalTreatedAsAbsentInPaths(t *testing.T) {
	task := klineTask()
	task.Interval = "sixty"

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)

	assert.Equal(t, "data/spot/daily/klines/BTCUSDT/BTCUSDT-klines-2025-07-15.zip", req.SourcePath)
}

func TestResolvePatternOverride(t *testing.T) {
	task := klineTask()
	task.URLPattern = "archive/{dataType}/{partition}/{symbol}"
	task.FilenamePattern = "{symbol}_{interval}_{date}.zip"

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)

	assert.Equal(t, "archive/klines/daily/BTCUSDT/BTCUSDT_1h_2025-07-15.zip", req.SourcePath)
}

func TestResolveRemoteDestination(t *testing.T) {
	cfg := &config.Config{
		Markets:   []string{"spot"},
		Symbols:   map[string][]string{"spot": {"BTCUSDT"}},
		DataTypes: []string{"klines"},
		StartDate: "2025-07-01",
		EndDate:   "2025-07-31",
		Destination: config.DestinationConfig{
			Kind:   config.DestS3,
			Bucket: "lake",
			Prefix: "market-data",
		},
	}
	cfg.ApplyDefaults()

	req, err := NewPathResolver(layout.New(), cfg).Resolve(klineTask())
	require.NoError(t, err)

	assert.Equal(t, "s3://lake/market-data/raw/exchange=binance/type=klines/market=spot/symbol=BTCUSDT/date=2025-07-15/BTCUSDT-1h-2025-07-15.zip", req.DestURI)
}

func TestResolveFuturesMarketPath(t *testing.T) {
	task := klineTask()
	task.Market = models.MarketUSDFutures
	task.DataType = models.DataTypeLiquidation
	task.RawDataType = "liquidationSnapshot"
	task.Interval = ""

	req, err := localPathResolver().Resolve(task)
	require.NoError(t, err)

	assert.Equal(t, "data/futures/um/daily/liquidationSnapshot/BTCUSDT/BTCUSDT-liquidationSnapshot-2025-07-15.zip", req.SourcePath)
}

func TestResolveBadDate(t *testing.T) {
	task := klineTask()
	task.ArchiveDate = "July 15"

	_, err := localPathResolver().Resolve(task)
	assert.Error(t, err)
}
