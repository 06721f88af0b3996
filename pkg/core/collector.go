package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/layout"
	"archivesync/pkg/matrix"
	"archivesync/pkg/models"
	"archivesync/pkg/pool"
	"archivesync/pkg/prefetch"
	"archivesync/pkg/resolver"
	"archivesync/pkg/resume"
	"archivesync/pkg/state"
	"archivesync/pkg/stats"
	"archivesync/pkg/streaming"
	"archivesync/pkg/transfer"
	"archivesync/pkg/tuning"
)

// Collector drives one collection run end to end: resolve the matrix into
// transfer requests, filter out what the destination already holds, pick the
// operation mode, and hand the rest to the transfer engine. Only a broken
// configuration or a cancelled context aborts a run; everything else lands
// in the summary counters.
type Collector struct {
	store  state.RunStore
	logger *zap.Logger
}

// NewCollector creates a collector persisting run metadata to the store. A
// nil store disables persistence.
func NewCollector(store state.RunStore, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{store: store, logger: logger}
}

// Run executes one collection run under a fresh run ID. The returned
// summary is valid even when err != nil as long as the run got past
// validation.
func (c *Collector) Run(ctx context.Context, cfg *config.Config) (models.RunSummary, error) {
	return c.RunWithID(ctx, cfg, uuid.New().String())
}

// RunWithID executes one collection run under a caller-chosen ID, letting
// the API hand out the ID before the run starts.
func (c *Collector) RunWithID(ctx context.Context, cfg *config.Config, runID string) (models.RunSummary, error) {
	configuredWorkers, configuredBatch := cfg.Concurrency, cfg.BatchSize
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return models.RunSummary{}, err
	}
	m, err := loadMatrix(cfg)
	if err != nil {
		return models.RunSummary{}, err
	}

	logger := c.logger.With(zap.String("run_id", runID))
	tracker := stats.NewTracker(runID, models.OperationMode(cfg.OperationMode), cfg.DestinationRoot())
	c.persist(tracker.Start())

	tasks, resolveStats := resolver.NewTaskResolver(m, logger).Resolve(cfg)
	logger.Info("resolved collection tasks",
		zap.Int("tasks", len(tasks)),
		zap.Int("matched_entries", resolveStats.MatchedEntries),
		zap.Int("dropped_entries", resolveStats.DroppedEntries),
		zap.Int("skipped_monthly", resolveStats.SkippedMonthly))

	requests := resolvePaths(tasks, cfg, logger)
	tracker.SetTotal(int64(len(requests)))

	dest, err := NewDestination(ctx, cfg, logger)
	if err != nil {
		return c.abort(ctx, tracker, fmt.Errorf("destination setup failed: %w", err))
	}
	if err := dest.EnsureReady(ctx); err != nil {
		return c.abort(ctx, tracker, fmt.Errorf("destination not ready: %w", err))
	}

	filter := resume.NewFilter(dest, prefetch.NewCache(0, 0), cfg.ForceUpdate, logger)
	remaining, skipped := filter.Apply(ctx, requests)
	for _, outcome := range skipped {
		tracker.Record(outcome)
	}
	logger.Info("resume filter applied",
		zap.Int("remaining", len(remaining)),
		zap.Int("skipped", len(skipped)))

	// Archives already at the destination are the only size sample available
	// before transfers start. Tuned values replace a knob only where the
	// configuration left it zero.
	tuner := tuning.NewTuner(logger)
	if len(skipped) > 0 {
		sample := make([]int64, 0, len(skipped))
		for _, outcome := range skipped {
			sample = append(sample, outcome.Bytes)
		}
		tuner.AnalyzeWorkload(sample)
	}
	cfg.Concurrency = tuner.RecommendWorkers(configuredWorkers, cfg.Concurrency)
	cfg.BatchSize = tuner.RecommendBatchSize(configuredBatch)

	mode := transfer.SelectMode(models.OperationMode(cfg.OperationMode), cfg.DirectSyncAvailable(), remaining)

	// Traditional reads the public archive anonymously; direct sync writes
	// the destination bucket and signs with its credentials.
	endpoint, noSign := cfg.Source.Endpoint, true
	if mode == models.ModeDirectSync {
		endpoint, noSign = cfg.Destination.Endpoint, false
	}
	tool := transfer.NewTool(cfg.ToolPath, cfg.Concurrency, cfg.RetryCount, noSign, endpoint, logger)
	avail := tool.Probe(ctx)
	if !avail.Available {
		logger.Warn("bulk tool unavailable, using per-request transfers",
			zap.String("tool", cfg.ToolPath),
			zap.String("reason", avail.Reason))
	}

	stagingDir := ""
	if dest.Kind() != config.DestLocal {
		stagingDir, err = os.MkdirTemp("", "archivesync-staging-*")
		if err != nil {
			return c.abort(ctx, tracker, fmt.Errorf("failed to create staging dir: %w", err))
		}
		defer os.RemoveAll(stagingDir)
	}

	sourcePool, destPool, err := c.syncPools(ctx, cfg, dest, mode, avail)
	if err != nil {
		return c.abort(ctx, tracker, err)
	}

	engineCfg := transfer.EngineConfig{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Retries:     cfg.RetryCount,
		Timeout:     cfg.Timeout,
	}
	downloader := streaming.NewDownloader(streaming.DownloadConfig{
		Retries:        cfg.RetryCount,
		AttemptTimeout: cfg.Timeout,
	}, logger)
	fallback := transfer.NewFallback(transfer.FallbackOptions{
		Config:     engineCfg,
		Runner:     tool,
		Avail:      avail,
		Dest:       dest,
		Downloader: downloader,
		SourcePool: sourcePool,
		DestPool:   destPool,
		StagingDir: stagingDir,
		Verify:     cfg.VerifyChecksums,
		Logger:     logger,
	})
	engine := transfer.NewEngine(engineCfg, tool, avail, dest, fallback, logger)

	logger.Info("starting transfers",
		zap.String("mode", string(mode)),
		zap.Int("requests", len(remaining)),
		zap.Int("workers", cfg.Concurrency),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("workload", string(tuner.Pattern())),
		zap.Bool("bulk_tool", avail.Available))
	if reduced := tuning.EstimateOpsReduced(mode, len(remaining)); reduced > 0 {
		logger.Info("server-side copies replace download plus upload",
			zap.Int("ops_reduced", reduced))
	}

	for _, outcome := range engine.Execute(ctx, remaining, mode) {
		tracker.Record(outcome)
	}

	status := models.RunStatusCompleted
	if ctx.Err() != nil {
		status = models.RunStatusFailed
	}
	c.persist(tracker.Finalize(status))

	summary := tracker.Summary()
	logger.Info("collection run finished",
		zap.String("status", string(status)),
		zap.Int64("succeeded", summary.SuccessfulTasks),
		zap.Int64("failed", summary.FailedTasks),
		zap.Int64("skipped", summary.SkippedTasks),
		zap.Int64("bytes", summary.TotalBytes),
		zap.Float64("duration_seconds", summary.DurationSeconds))

	return summary, ctx.Err()
}

// SyncPrefix replicates one whole prefix with the bulk tool's sync
// subcommand. Unlike collection runs this requires the tool; there is no
// per-object fallback for a prefix-level diff.
func (c *Collector) SyncPrefix(ctx context.Context, cfg *config.Config, source, dest string, deleteRemoved bool) error {
	cfg.ApplyDefaults()

	tool := transfer.NewTool(cfg.ToolPath, cfg.Concurrency, cfg.RetryCount, false, cfg.Destination.Endpoint, c.logger)
	avail := tool.Probe(ctx)
	if !avail.Available {
		return fmt.Errorf("prefix sync requires the bulk tool: %s", avail.Reason)
	}

	timeout := cfg.Timeout
	if timeout < 30*time.Minute {
		timeout = 30 * time.Minute
	}
	c.logger.Info("syncing prefix",
		zap.String("source", source),
		zap.String("dest", dest),
		zap.Bool("delete_removed", deleteRemoved))

	output, err := tool.Sync(ctx, source, dest, deleteRemoved, timeout)
	if err != nil {
		return fmt.Errorf("prefix sync failed: %w", err)
	}
	c.logger.Info("prefix sync finished", zap.Int("output_bytes", len(output)))
	return nil
}

// syncPools builds the S3 client pools the SDK copy fallback needs. Both
// stay nil unless a direct-sync run could miss the tool.
func (c *Collector) syncPools(ctx context.Context, cfg *config.Config, dest Destination, mode models.OperationMode, avail transfer.ToolAvailability) (*pool.ConnectionPool, *pool.ConnectionPool, error) {
	if mode != models.ModeDirectSync || avail.Available {
		return nil, nil, nil
	}
	s3dest, ok := dest.(*S3Destination)
	if !ok {
		return nil, nil, nil
	}

	srcCfg, err := config.SourceAWSConfig(ctx, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("source client setup failed: %w", err)
	}
	sourcePool := pool.NewConnectionPool(srcCfg, pool.PoolOptions{
		Size:     cfg.Concurrency,
		Endpoint: cfg.Source.Endpoint,
	})
	return sourcePool, s3dest.Connections(), nil
}

// resolvePaths maps tasks to transfer requests. A task that cannot be
// resolved is dropped with a warning; it never aborts the run.
func resolvePaths(tasks []models.IngestionTask, cfg *config.Config, logger *zap.Logger) []models.TransferRequest {
	paths := resolver.NewPathResolver(layout.New(), cfg)
	requests := make([]models.TransferRequest, 0, len(tasks))
	for _, task := range tasks {
		req, err := paths.Resolve(task)
		if err != nil {
			logger.Warn("dropping unresolvable task",
				zap.String("symbol", task.Symbol),
				zap.String("archive_date", task.ArchiveDate),
				zap.Error(err))
			continue
		}
		requests = append(requests, req)
	}
	return requests
}

// abort finalizes a run that could not reach the transfer stage. The error
// is surfaced through the run record; the caller only gets an error back
// when the context itself was cancelled.
func (c *Collector) abort(ctx context.Context, tracker *stats.Tracker, cause error) (models.RunSummary, error) {
	c.logger.Error("collection run aborted", zap.Error(cause))
	tracker.Record(models.TransferOutcome{Status: models.OutcomeError, Error: cause.Error()})
	c.persist(tracker.Finalize(models.RunStatusFailed))

	if ctx.Err() != nil {
		return tracker.Summary(), ctx.Err()
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return tracker.Summary(), cause
	}
	return tracker.Summary(), nil
}

func (c *Collector) persist(meta models.RunMetadata) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveRun(meta); err != nil {
		c.logger.Warn("failed to persist run metadata",
			zap.String("run_id", meta.ID),
			zap.Error(err))
	}
}

func loadMatrix(cfg *config.Config) (*matrix.Matrix, error) {
	if cfg.MatrixPath == "" {
		return matrix.Default(), nil
	}
	return matrix.Load(cfg.MatrixPath)
}
