package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/models"
)

// Destination is the slice of the destination store the engine needs:
// existence as ground truth for ambiguous tool output, uploads for staged
// transfers.
type Destination interface {
	Kind() string
	Exists(ctx context.Context, relPath string) (bool, int64, error)
	Upload(ctx context.Context, relPath, localFile string) (int64, error)
}

// EngineConfig carries the transfer-stage knobs.
type EngineConfig struct {
	BatchSize   int
	Concurrency int
	Retries     int
	Timeout     time.Duration
}

// Engine executes prepared transfer requests. It prefers one bulk-tool
// invocation per fixed-size batch and falls back to per-request transfers
// when the tool is unavailable or the destination is outside its reach.
type Engine struct {
	cfg      EngineConfig
	runner   BatchRunner
	avail    ToolAvailability
	dest     Destination
	fallback *Fallback
	logger   *zap.Logger
}

// NewEngine creates an engine for one run.
func NewEngine(cfg EngineConfig, runner BatchRunner, avail ToolAvailability, dest Destination, fallback *Fallback, logger *zap.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		runner:   runner,
		avail:    avail,
		dest:     dest,
		fallback: fallback,
		logger:   logger,
	}
}

// batchEligible reports whether the bulk tool can serve this run. The tool
// speaks S3 and the local filesystem; staged traditional transfers to a
// remote store and GCS destinations go per-request.
func (e *Engine) batchEligible(mode models.OperationMode, n int) bool {
	if !e.avail.Available || e.runner == nil || n <= 1 {
		return false
	}
	switch mode {
	case models.ModeDirectSync:
		return e.dest.Kind() == config.DestS3
	default:
		return e.dest.Kind() == config.DestLocal
	}
}

// Execute runs every request and returns one outcome per request. It never
// aborts on individual failures; a malformed batch fails as a unit and the
// engine proceeds to the next one.
func (e *Engine) Execute(ctx context.Context, requests []models.TransferRequest, mode models.OperationMode) []models.TransferOutcome {
	if len(requests) == 0 {
		return nil
	}

	if !e.batchEligible(mode, len(requests)) {
		e.logger.Info("using per-request transfer strategy",
			zap.Int("requests", len(requests)),
			zap.Bool("tool_available", e.avail.Available),
			zap.String("mode", string(mode)))
		return e.fallback.Execute(ctx, requests, mode)
	}

	e.logger.Info("using batch transfer strategy",
		zap.Int("requests", len(requests)),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.String("tool", e.avail.Path),
		zap.String("mode", string(mode)))

	outcomes := make([]models.TransferOutcome, 0, len(requests))
	for i, batch := range Partition(requests, e.cfg.BatchSize) {
		if ctx.Err() != nil {
			for _, req := range batch {
				outcomes = append(outcomes, models.TransferOutcome{
					Status:    models.OutcomeError,
					SourceURI: req.SourceURI,
					DestURI:   req.DestURI,
					Error:     fmt.Sprintf("run cancelled: %v", ctx.Err()),
				})
			}
			continue
		}

		started := time.Now()
		output, err := e.runner.RunBatch(ctx, ManifestLines(batch), e.cfg.Timeout)
		elapsed := time.Since(started)

		var invErr *BatchInvocationError
		if errors.As(err, &invErr) {
			// The tool never ran; nothing to attribute.
			e.logger.Error("batch invocation failed",
				zap.Int("batch", i),
				zap.Int("requests", len(batch)),
				zap.Error(err))
			for _, req := range batch {
				outcomes = append(outcomes, models.TransferOutcome{
					Status:    models.OutcomeFailed,
					SourceURI: req.SourceURI,
					DestURI:   req.DestURI,
					Error:     invErr.Error(),
					Duration:  elapsed,
				})
			}
			continue
		}

		batchOutcomes := e.attribute(ctx, batch, output, err, elapsed)
		outcomes = append(outcomes, batchOutcomes...)

		succeeded := 0
		for _, o := range batchOutcomes {
			if o.Status == models.OutcomeSuccess {
				succeeded++
			}
		}
		e.logger.Info("batch finished",
			zap.Int("batch", i),
			zap.Int("requests", len(batch)),
			zap.Int("succeeded", succeeded),
			zap.Duration("elapsed", elapsed))
	}

	return outcomes
}

// attribute maps the tool's combined output back onto individual requests.
// Substring matching is best-effort only; for any request the output does
// not settle, destination existence is the ground truth.
func (e *Engine) attribute(ctx context.Context, batch []models.TransferRequest, output string, runErr error, elapsed time.Duration) []models.TransferOutcome {
	shared := "not reported in bulk tool output and absent at destination"
	if runErr != nil {
		shared = runErr.Error()
	}

	lines := strings.Split(output, "\n")

	outcomes := make([]models.TransferOutcome, 0, len(batch))
	for _, req := range batch {
		outcome := models.TransferOutcome{
			SourceURI: req.SourceURI,
			DestURI:   req.DestURI,
			Duration:  elapsed,
		}

		matched := false
		for _, line := range lines {
			if req.SourcePath == "" || !strings.Contains(line, req.SourcePath) {
				continue
			}
			if isErrorLine(line) {
				outcome.Status = models.OutcomeFailed
				outcome.Error = strings.TrimSpace(line)
			} else {
				outcome.Status = models.OutcomeSuccess
			}
			matched = true
			break
		}

		if !matched || outcome.Status == models.OutcomeSuccess {
			// Existence settles unmatched requests and supplies sizes for
			// matched successes.
			exists, size, err := e.dest.Exists(ctx, req.DestPath)
			switch {
			case err == nil && exists && size > 0:
				outcome.Status = models.OutcomeSuccess
				outcome.Bytes = size
				outcome.Error = ""
			case matched && outcome.Status == models.OutcomeSuccess && err != nil:
				// Output said success but the check itself failed; trust
				// the output rather than inventing a failure.
			case !matched:
				outcome.Status = models.OutcomeFailed
				outcome.Error = shared
			default:
				outcome.Status = models.OutcomeFailed
				outcome.Error = "reported copied but destination is missing or empty"
			}
		}

		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// isErrorLine matches the failure lines of the bulk tool's output.
func isErrorLine(line string) bool {
	upper := strings.ToUpper(line)
	return strings.Contains(upper, "ERROR") || strings.Contains(upper, "FAILED")
}
