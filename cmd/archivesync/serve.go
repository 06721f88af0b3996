package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"archivesync/api"
	"archivesync/pkg/core"
	"archivesync/pkg/scheduler"
	"archivesync/pkg/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve the collection API: start runs, poll their progress, replicate whole
prefixes and manage cron schedules. Run history is kept in memory unless a
database is configured.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP listen port")
	serveCmd.Flags().String("db-driver", "", `run store driver ("postgres"; empty keeps run history in memory)`)
	serveCmd.Flags().String("db-dsn", "", "run store connection string")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("database.driver", serveCmd.Flags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", serveCmd.Flags().Lookup("db-dsn"))
}

func runServe(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := collectionConfig()
	cfg.ApplyDefaults()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if store == nil {
		logger.Info("no database configured, keeping run history in memory")
		store = state.NewMemoryStore()
	}
	defer store.Close()

	collector := core.NewCollector(store, logger)
	server := api.NewServer(cfg, collector, store, nil, logger)
	sched := scheduler.NewScheduler(server, logger)
	server.AttachScheduler(sched)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server.Runs().StartCleanup(ctx, time.Hour, 7*24*time.Hour)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.SetupRouter(server),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
