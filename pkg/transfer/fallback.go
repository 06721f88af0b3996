package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/integrity"
	"archivesync/pkg/models"
	"archivesync/pkg/pool"
	"archivesync/pkg/streaming"
)

// Fallback transfers requests one at a time on a worker pool. It is correct
// for every destination kind the engine supports, at the cost of one process
// or HTTP round-trip per file.
type Fallback struct {
	cfg        EngineConfig
	runner     BatchRunner
	avail      ToolAvailability
	dest       Destination
	downloader *streaming.Downloader
	source     *pool.ConnectionPool
	remote     *pool.ConnectionPool
	stagingDir string
	verify     bool
	logger     *zap.Logger
}

// FallbackOptions wires the per-request strategy. SourcePool and DestPool are
// only consulted for direct sync without the bulk tool; StagingDir only for
// downloads bound for a remote destination.
type FallbackOptions struct {
	Config     EngineConfig
	Runner     BatchRunner
	Avail      ToolAvailability
	Dest       Destination
	Downloader *streaming.Downloader
	SourcePool *pool.ConnectionPool
	DestPool   *pool.ConnectionPool
	StagingDir string
	Verify     bool
	Logger     *zap.Logger
}

// NewFallback creates the per-request transfer strategy.
func NewFallback(opts FallbackOptions) *Fallback {
	if opts.Config.Concurrency <= 0 {
		opts.Config.Concurrency = 8
	}
	if opts.Config.Retries <= 0 {
		opts.Config.Retries = 3
	}
	if opts.Config.Timeout <= 0 {
		opts.Config.Timeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Fallback{
		cfg:        opts.Config,
		runner:     opts.Runner,
		avail:      opts.Avail,
		dest:       opts.Dest,
		downloader: opts.Downloader,
		source:     opts.SourcePool,
		remote:     opts.DestPool,
		stagingDir: opts.StagingDir,
		verify:     opts.Verify,
		logger:     opts.Logger,
	}
}

// Execute fans the requests out over the pool and collects one outcome per
// request. Requests left unprocessed by cancellation are reported as errors
// rather than dropped.
func (f *Fallback) Execute(ctx context.Context, requests []models.TransferRequest, mode models.OperationMode) []models.TransferOutcome {
	if len(requests) == 0 {
		return nil
	}

	workers := f.cfg.Concurrency
	if workers > len(requests) {
		workers = len(requests)
	}

	wp := pool.NewWorkerPool(ctx, workers)
	go func() {
		defer wp.Stop()
		for _, req := range requests {
			req := req
			ok := wp.Submit(func(jobCtx context.Context) models.TransferOutcome {
				return f.transferOne(jobCtx, req, mode)
			})
			if !ok {
				return
			}
		}
	}()

	outcomes := make([]models.TransferOutcome, 0, len(requests))
	for outcome := range wp.Results() {
		outcomes = append(outcomes, outcome)
	}
	return reconcile(requests, outcomes)
}

// reconcile appends error outcomes for requests the pool never reported,
// keeping outcome count equal to request count.
func reconcile(requests []models.TransferRequest, outcomes []models.TransferOutcome) []models.TransferOutcome {
	if len(outcomes) >= len(requests) {
		return outcomes
	}
	seen := make(map[string]int, len(outcomes))
	for _, o := range outcomes {
		seen[o.DestURI]++
	}
	for _, req := range requests {
		if n := seen[req.DestURI]; n > 0 {
			seen[req.DestURI] = n - 1
			continue
		}
		outcomes = append(outcomes, models.TransferOutcome{
			Status:    models.OutcomeError,
			SourceURI: req.SourceURI,
			DestURI:   req.DestURI,
			Error:     "run cancelled before transfer",
		})
	}
	return outcomes
}

func (f *Fallback) transferOne(ctx context.Context, req models.TransferRequest, mode models.OperationMode) models.TransferOutcome {
	started := time.Now()

	var bytes int64
	var err error
	if mode == models.ModeDirectSync {
		bytes, err = f.remoteCopy(ctx, req)
	} else {
		bytes, err = f.download(ctx, req)
	}

	outcome := models.TransferOutcome{
		SourceURI: req.SourceURI,
		DestURI:   req.DestURI,
		Bytes:     bytes,
		Duration:  time.Since(started),
	}
	switch {
	case err == nil:
		outcome.Status = models.OutcomeSuccess
	case ctx.Err() != nil:
		outcome.Status = models.OutcomeError
		outcome.Error = fmt.Sprintf("run cancelled: %v", ctx.Err())
	default:
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		f.logger.Warn("transfer failed",
			zap.String("source", req.SourceURI),
			zap.String("dest", req.DestURI),
			zap.Error(err))
	}
	return outcome
}

// remoteCopy moves one object bucket to bucket, via the tool when present
// and the SDK otherwise.
func (f *Fallback) remoteCopy(ctx context.Context, req models.TransferRequest) (int64, error) {
	if f.avail.Available && f.runner != nil {
		output, err := f.runner.RunSingle(ctx, req.SourceURI, req.DestURI, f.cfg.Timeout)
		if err != nil {
			return 0, toolError(output, err)
		}
		if exists, size, err := f.dest.Exists(ctx, req.DestPath); err == nil && exists {
			return size, nil
		}
		return 0, nil
	}
	return f.sdkCopy(ctx, req)
}

// toolError folds the tool's first failure line into the process error.
func toolError(output string, err error) error {
	for _, line := range strings.Split(output, "\n") {
		if isErrorLine(line) {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(line))
		}
	}
	return err
}

// sdkCopy streams GetObject into PutObject. The archive end is anonymous and
// the destination end is credentialed, so a server-side copy is not an
// option here.
func (f *Fallback) sdkCopy(ctx context.Context, req models.TransferRequest) (int64, error) {
	if f.source == nil || f.remote == nil {
		return 0, fmt.Errorf("direct sync needs the bulk tool or S3 clients, neither is available")
	}

	srcBucket, srcKey, ok := ParseS3URI(req.SourceURI)
	if !ok {
		return 0, fmt.Errorf("malformed source uri %q", req.SourceURI)
	}
	dstBucket, dstKey, ok := ParseS3URI(req.DestURI)
	if !ok {
		return 0, fmt.Errorf("malformed destination uri %q", req.DestURI)
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		n, err := f.copyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
		if err == nil {
			return n, nil
		}
		lastErr = err
		f.logger.Warn("object copy attempt failed",
			zap.String("key", srcKey),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return 0, lastErr
}

func (f *Fallback) copyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (int64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	src := f.source.GetClientByKey(srcKey)
	getResp, err := src.GetObject(attemptCtx, &s3.GetObjectInput{
		Bucket: aws.String(srcBucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		f.source.RecordError()
		return 0, fmt.Errorf("get %s/%s: %w", srcBucket, srcKey, err)
	}
	defer getResp.Body.Close()

	size := aws.ToInt64(getResp.ContentLength)

	var body io.Reader = getResp.Body
	var hasher *integrity.StreamingHasher
	if f.verify {
		hasher = integrity.NewStreamingHasher()
		body = io.TeeReader(getResp.Body, hasher)
	}

	dst := f.remote.GetClientByKey(dstKey)
	_, err = dst.PutObject(attemptCtx, &s3.PutObjectInput{
		Bucket:        aws.String(dstBucket),
		Key:           aws.String(dstKey),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		f.remote.RecordError()
		return 0, fmt.Errorf("put %s/%s: %w", dstBucket, dstKey, err)
	}

	if hasher != nil && hasher.Size() != size {
		return 0, fmt.Errorf("streamed %d bytes, expected %d", hasher.Size(), size)
	}
	return size, nil
}

// download materializes one archive over HTTPS, directly into a local
// destination or through the staging directory for remote ones.
func (f *Fallback) download(ctx context.Context, req models.TransferRequest) (int64, error) {
	if f.downloader == nil {
		return 0, fmt.Errorf("no downloader configured")
	}

	local := req.DestURI
	staged := f.dest.Kind() != config.DestLocal
	if staged {
		if f.stagingDir == "" {
			return 0, fmt.Errorf("remote destination needs a staging directory")
		}
		local = filepath.Join(f.stagingDir, filepath.FromSlash(req.DestPath))
	}

	var hasher *integrity.StreamingHasher
	var n int64
	var err error
	if f.verify {
		hasher = integrity.NewStreamingHasher()
		n, err = f.downloader.Download(ctx, req.SourceURL, local, hasher)
	} else {
		n, err = f.downloader.Download(ctx, req.SourceURL, local)
	}
	if err != nil {
		return 0, err
	}

	if hasher != nil {
		if err := f.checkSidecar(ctx, req, hasher); err != nil {
			os.Remove(local)
			return 0, err
		}
	}

	if staged {
		defer os.Remove(local)
		return f.dest.Upload(ctx, req.DestPath, local)
	}
	return n, nil
}

// checkSidecar verifies the streamed digest against the published .CHECKSUM
// sidecar. A missing sidecar is not a failure; the archive does not publish
// one for every file.
func (f *Fallback) checkSidecar(ctx context.Context, req models.TransferRequest, hasher *integrity.StreamingHasher) error {
	sidecar, err := f.downloader.Fetch(ctx, req.SourceURL+".CHECKSUM", 0)
	if err != nil {
		if streaming.IsPermanent(err) {
			f.logger.Debug("no checksum sidecar published", zap.String("url", req.SourceURL))
			return nil
		}
		return fmt.Errorf("fetch checksum sidecar: %w", err)
	}

	result := integrity.Verify(hasher, sidecar)
	if !result.Valid {
		return fmt.Errorf("checksum verification failed: %s", result.Message)
	}
	return nil
}
