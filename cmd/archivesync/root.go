package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"archivesync/pkg/config"
	"archivesync/pkg/state"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "archivesync",
	Short: "Collect public market archives into local or object storage",
	Long: `archivesync resolves market/symbol/date combinations against the public
archive catalog and transfers the matching zip files into a local directory,
an S3-compatible bucket or a GCS bucket. Transfers batch through s5cmd when
the tool is available and fall back to per-file HTTPS downloads when not.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./archivesync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("archivesync")
	}

	viper.SetEnvPrefix("ARCHIVESYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", viper.GetString("log_level"), err)
	}

	encoding := "console"
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if viper.GetString("log_format") == "json" {
		encoding = "json"
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

// collectionConfig assembles the process configuration from every bound
// source: flags, ARCHIVESYNC_* env vars and the optional config file.
func collectionConfig() *config.Config {
	cfg := &config.Config{
		Markets:         viper.GetStringSlice("markets"),
		DataTypes:       viper.GetStringSlice("data_types"),
		StartDate:       viper.GetString("start_date"),
		EndDate:         viper.GetString("end_date"),
		ForceUpdate:     viper.GetBool("force_update"),
		OperationMode:   viper.GetString("operation_mode"),
		Concurrency:     viper.GetInt("concurrency"),
		BatchSize:       viper.GetInt("batch_size"),
		RetryCount:      viper.GetInt("retry_count"),
		ToolPath:        viper.GetString("tool_path"),
		VerifyChecksums: viper.GetBool("verify_checksums"),
		Zone:            viper.GetString("zone"),
		MatrixPath:      viper.GetString("matrix_path"),
		Source: config.SourceConfig{
			Bucket:   viper.GetString("source.bucket"),
			BaseURL:  viper.GetString("source.base_url"),
			Endpoint: viper.GetString("source.endpoint"),
			Region:   viper.GetString("source.region"),
		},
		Destination: config.DestinationConfig{
			Kind:            viper.GetString("dest.kind"),
			LocalRoot:       viper.GetString("dest.local_root"),
			Bucket:          viper.GetString("dest.bucket"),
			Prefix:          viper.GetString("dest.prefix"),
			Endpoint:        viper.GetString("dest.endpoint"),
			Region:          viper.GetString("dest.region"),
			AccessKey:       viper.GetString("dest.access_key"),
			SecretKey:       viper.GetString("dest.secret_key"),
			CredentialsFile: viper.GetString("dest.credentials_file"),
			CreateBucket:    viper.GetBool("dest.create_bucket"),
		},
		Database: config.DatabaseConfig{
			Driver: viper.GetString("database.driver"),
			DSN:    viper.GetString("database.dsn"),
		},
		Server: config.ServerConfig{
			Port: viper.GetInt("server.port"),
		},
	}
	if symbols := viper.GetStringMapStringSlice("symbols"); len(symbols) > 0 {
		cfg.Symbols = symbols
	}
	if d := viper.GetDuration("timeout"); d > 0 {
		cfg.Timeout = d
	}
	return cfg
}

// openStore returns the configured run store, or nil when persistence is
// disabled.
func openStore(cfg *config.Config, logger *zap.Logger) (state.RunStore, error) {
	if cfg.Database.Driver == "" {
		return nil, nil
	}
	return state.NewDBStore(cfg.Database.Driver, cfg.Database.DSN, logger)
}
