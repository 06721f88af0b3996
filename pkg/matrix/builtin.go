package matrix

// klineIntervals is the full interval ladder published for kline datasets.
var klineIntervals = []string{
	"1s", "1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1mo",
}

// futuresKlineIntervals omits the sub-minute granularity, which the archive
// only publishes for spot.
var futuresKlineIntervals = klineIntervals[1:]

// Default returns the built-in catalog covering the archive's published
// (market, data type) combinations. Operators can replace it with a JSON
// matrix file when the archive adds datasets faster than releases ship.
func Default() *Matrix {
	daily := []string{"daily"}
	both := []string{"daily", "monthly"}

	return &Matrix{Entries: []Entry{
		// Spot.
		{Market: "spot", DataType: "klines", Intervals: klineIntervals, Partitions: both},
		{Market: "spot", DataType: "trades", Partitions: both},
		{Market: "spot", DataType: "aggTrades", Partitions: both},

		// USD-margined futures.
		{Market: "usd-margined-futures", DataType: "klines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "usd-margined-futures", DataType: "trades", Partitions: both},
		{Market: "usd-margined-futures", DataType: "aggTrades", Partitions: both},
		{Market: "usd-margined-futures", DataType: "fundingRate", Partitions: []string{"monthly"}},
		{Market: "usd-margined-futures", DataType: "markPriceKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "usd-margined-futures", DataType: "indexPriceKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "usd-margined-futures", DataType: "premiumIndexKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "usd-margined-futures", DataType: "bookDepth", Partitions: daily},
		{Market: "usd-margined-futures", DataType: "bookTicker", Partitions: daily},
		{Market: "usd-margined-futures", DataType: "liquidationSnapshot", Partitions: daily},

		// Coin-margined futures.
		{Market: "coin-margined-futures", DataType: "klines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "coin-margined-futures", DataType: "trades", Partitions: both},
		{Market: "coin-margined-futures", DataType: "aggTrades", Partitions: both},
		{Market: "coin-margined-futures", DataType: "fundingRate", Partitions: []string{"monthly"}},
		{Market: "coin-margined-futures", DataType: "markPriceKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "coin-margined-futures", DataType: "indexPriceKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "coin-margined-futures", DataType: "premiumIndexKlines", Intervals: futuresKlineIntervals, Partitions: both},
		{Market: "coin-margined-futures", DataType: "bookDepth", Partitions: daily},
		{Market: "coin-margined-futures", DataType: "bookTicker", Partitions: daily},
		{Market: "coin-margined-futures", DataType: "liquidationSnapshot", Partitions: daily},

		// Options.
		{Market: "options", DataType: "BVOLIndex", Partitions: daily},
		{Market: "options", DataType: "EOHSummary", Partitions: daily},
	}}
}
