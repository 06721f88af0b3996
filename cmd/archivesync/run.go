package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"archivesync/pkg/core"
	"archivesync/pkg/models"
)

var symbolFilter []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collection and exit",
	Long: `Resolve the requested markets, symbols, data types and dates against the
archive catalog and transfer every matching file. Archives already present
at the destination are skipped unless --force-update is set. Partial
failures are reported in the summary; only configuration errors fail the
command.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCollection(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringSlice("markets", nil, "markets to collect (spot, futures-um, futures-cm)")
	runCmd.Flags().StringSliceVar(&symbolFilter, "symbols", nil, "symbols to collect, applied to every market")
	runCmd.Flags().StringSlice("data-types", nil, "data types to collect (klines, trades, aggTrades, ...)")
	runCmd.Flags().String("start-date", "", "start date (YYYY-MM-DD, inclusive)")
	runCmd.Flags().String("end-date", "", "end date (YYYY-MM-DD, inclusive)")
	runCmd.Flags().Bool("force-update", false, "re-transfer archives that already exist at the destination")
	runCmd.Flags().String("mode", "", "operation mode (auto, direct_sync, traditional)")
	runCmd.Flags().Int("concurrency", 0, "parallel transfers")
	runCmd.Flags().Int("batch-size", 0, "requests per bulk tool invocation")
	runCmd.Flags().Duration("timeout", 0, "per transfer timeout")
	runCmd.Flags().Int("retry-count", 0, "retries per transfer")
	runCmd.Flags().String("tool", "", "bulk transfer tool binary")
	runCmd.Flags().String("matrix", "", "JSON matrix file overriding the built-in catalog")
	runCmd.Flags().String("zone", "", "layout zone segment")
	runCmd.Flags().Bool("verify-checksums", false, "fetch and verify .CHECKSUM files after transfer")

	runCmd.Flags().String("source-bucket", "", "archive S3 bucket")
	runCmd.Flags().String("source-base-url", "", "archive HTTPS base URL")
	runCmd.Flags().String("source-endpoint", "", "archive S3 endpoint override")
	runCmd.Flags().String("source-region", "", "archive S3 region")

	runCmd.Flags().String("dest-kind", "", "destination kind (local, s3, gcs)")
	runCmd.Flags().String("dest-root", "", "local destination root directory")
	runCmd.Flags().String("dest-bucket", "", "destination bucket")
	runCmd.Flags().String("dest-prefix", "", "key prefix inside the destination bucket")
	runCmd.Flags().String("dest-endpoint", "", "destination S3 endpoint override")
	runCmd.Flags().String("dest-region", "", "destination region")
	runCmd.Flags().String("dest-credentials-file", "", "GCS service account key file")
	runCmd.Flags().Bool("dest-create-bucket", false, "create the destination bucket when missing")

	_ = viper.BindPFlag("markets", runCmd.Flags().Lookup("markets"))
	_ = viper.BindPFlag("data_types", runCmd.Flags().Lookup("data-types"))
	_ = viper.BindPFlag("start_date", runCmd.Flags().Lookup("start-date"))
	_ = viper.BindPFlag("end_date", runCmd.Flags().Lookup("end-date"))
	_ = viper.BindPFlag("force_update", runCmd.Flags().Lookup("force-update"))
	_ = viper.BindPFlag("operation_mode", runCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("concurrency", runCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("batch_size", runCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("timeout", runCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("retry_count", runCmd.Flags().Lookup("retry-count"))
	_ = viper.BindPFlag("tool_path", runCmd.Flags().Lookup("tool"))
	_ = viper.BindPFlag("matrix_path", runCmd.Flags().Lookup("matrix"))
	_ = viper.BindPFlag("zone", runCmd.Flags().Lookup("zone"))
	_ = viper.BindPFlag("verify_checksums", runCmd.Flags().Lookup("verify-checksums"))
	_ = viper.BindPFlag("source.bucket", runCmd.Flags().Lookup("source-bucket"))
	_ = viper.BindPFlag("source.base_url", runCmd.Flags().Lookup("source-base-url"))
	_ = viper.BindPFlag("source.endpoint", runCmd.Flags().Lookup("source-endpoint"))
	_ = viper.BindPFlag("source.region", runCmd.Flags().Lookup("source-region"))
	_ = viper.BindPFlag("dest.kind", runCmd.Flags().Lookup("dest-kind"))
	_ = viper.BindPFlag("dest.local_root", runCmd.Flags().Lookup("dest-root"))
	_ = viper.BindPFlag("dest.bucket", runCmd.Flags().Lookup("dest-bucket"))
	_ = viper.BindPFlag("dest.prefix", runCmd.Flags().Lookup("dest-prefix"))
	_ = viper.BindPFlag("dest.endpoint", runCmd.Flags().Lookup("dest-endpoint"))
	_ = viper.BindPFlag("dest.region", runCmd.Flags().Lookup("dest-region"))
	_ = viper.BindPFlag("dest.credentials_file", runCmd.Flags().Lookup("dest-credentials-file"))
	_ = viper.BindPFlag("dest.create_bucket", runCmd.Flags().Lookup("dest-create-bucket"))
}

func runCollection(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := collectionConfig()
	if len(symbolFilter) > 0 {
		cfg.Symbols = map[string][]string{"": symbolFilter}
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	collector := core.NewCollector(store, logger)
	summary, err := collector.Run(ctx, cfg)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func printSummary(s models.RunSummary) {
	fmt.Println()
	fmt.Printf("Run:          %s\n", s.RunID)
	fmt.Printf("Status:       %s\n", s.Status)
	fmt.Printf("Mode:         %s\n", s.OperationMode)
	fmt.Printf("Destination:  %s\n", s.DestinationRoot)
	fmt.Printf("Tasks:        %d total, %d succeeded, %d skipped, %d failed\n",
		s.TotalTasks, s.SuccessfulTasks, s.SkippedTasks, s.FailedTasks)
	fmt.Printf("Transferred:  %.2f MB\n", float64(s.TotalBytes)/1024/1024)
	fmt.Printf("Success rate: %.1f%%\n", s.SuccessRate)
	fmt.Printf("Duration:     %.1fs\n", s.DurationSeconds)
}
