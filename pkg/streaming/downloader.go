package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"archivesync/pkg/pool"
)

// DownloadConfig holds configuration for streamed archive downloads.
type DownloadConfig struct {
	ChunkSize      int64         // copy buffer size
	Retries        int           // attempts per archive
	AttemptTimeout time.Duration // budget per attempt
}

// DefaultDownloadConfig returns default download configuration
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		ChunkSize:      1024 * 1024, // 1MB copy buffer
		Retries:        3,
		AttemptTimeout: 5 * time.Minute,
	}
}

// Downloader streams archives from the HTTPS front of the archive to local
// files. Writes stage to a ".tmp" sibling and rename into place only on
// success, so an interrupted download never leaves a plausible-looking
// destination behind.
type Downloader struct {
	client     *http.Client
	bufferPool *pool.BufferPool
	config     DownloadConfig
	logger     *zap.Logger
}

// NewDownloader creates a downloader.
func NewDownloader(config DownloadConfig, logger *zap.Logger) *Downloader {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultDownloadConfig().ChunkSize
	}
	if config.Retries <= 0 {
		config.Retries = DefaultDownloadConfig().Retries
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultDownloadConfig().AttemptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
			// Per-attempt deadlines come from the request context.
		},
		bufferPool: pool.NewBufferPool(int(config.ChunkSize)),
		config:     config,
		logger:     logger,
	}
}

// permanentStatus reports whether an HTTP status will not improve on retry.
func permanentStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusForbidden || code == http.StatusGone
}

// Download fetches url into destPath. Extra writers, when given, observe
// the downloaded bytes as they stream (checksum hashing); attaching one
// disables partial-file resume since the writer would miss earlier bytes.
// Returns the number of bytes in the finished file.
func (d *Downloader) Download(ctx context.Context, url, destPath string, extra ...io.Writer) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempPath := destPath + ".tmp"
	resumable := len(extra) == 0

	var lastErr error
	for attempt := 1; attempt <= d.config.Retries; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		written, err := d.attempt(ctx, url, tempPath, resumable, extra)
		if err == nil {
			if err := os.Rename(tempPath, destPath); err != nil {
				os.Remove(tempPath)
				return 0, fmt.Errorf("failed to finalize download: %w", err)
			}
			return written, nil
		}

		lastErr = err
		var pe *permanentError
		if errors.As(err, &pe) {
			os.Remove(tempPath)
			return 0, err
		}

		d.logger.Warn("download attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	os.Remove(tempPath)
	return 0, fmt.Errorf("download failed after %d attempts: %w", d.config.Retries, lastErr)
}

// permanentError marks failures that retrying cannot fix (missing archive).
type permanentError struct {
	status int
	url    string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("archive not retrievable (HTTP %d): %s", e.status, e.url)
}

// IsPermanent reports whether a download error will not improve on retry,
// so callers skip their own retry budget for it.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func (d *Downloader) attempt(ctx context.Context, url, tempPath string, resumable bool, extra []io.Writer) (int64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	var offset int64
	if resumable {
		if info, err := os.Stat(tempPath); err == nil {
			offset = info.Size()
		}
	} else {
		os.Remove(tempPath)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		// Continue into the existing partial file.
	case resp.StatusCode == http.StatusOK:
		// Full body; any partial progress restarts from zero.
		offset = 0
	case permanentStatus(resp.StatusCode):
		return 0, &permanentError{status: resp.StatusCode, url: url}
	default:
		return 0, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(tempPath, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open staging file: %w", err)
	}

	var w io.Writer = file
	if len(extra) > 0 {
		w = io.MultiWriter(append([]io.Writer{file}, extra...)...)
	}

	buffer := d.bufferPool.Get()
	written, copyErr := io.CopyBuffer(w, resp.Body, buffer)
	d.bufferPool.Put(buffer)

	closeErr := file.Close()

	if copyErr != nil {
		return 0, fmt.Errorf("streaming copy failed: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("failed to close staging file: %w", closeErr)
	}

	return offset + written, nil
}

// Fetch retrieves a small ancillary file (checksum sidecars) fully into
// memory, capped at maxBytes.
func (d *Downloader) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if permanentStatus(resp.StatusCode) {
		return nil, &permanentError{status: resp.StatusCode, url: url}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	if maxBytes <= 0 {
		maxBytes = 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

// BufferStats returns buffer pool statistics.
func (d *Downloader) BufferStats() pool.BufferPoolStats {
	return d.bufferPool.Stats()
}
