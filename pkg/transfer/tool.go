package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ToolAvailability is the per-run probe result for the bulk-transfer tool.
// It is computed once per run and passed down explicitly; there is no
// process-global cache.
type ToolAvailability struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BatchInvocationError marks a bulk invocation that never ran: the process
// could not start or the manifest could not be written. Every request in the
// affected batch is failed with this one shared message.
type BatchInvocationError struct {
	Err error
}

func (e *BatchInvocationError) Error() string {
	return fmt.Sprintf("bulk tool invocation failed: %v", e.Err)
}

func (e *BatchInvocationError) Unwrap() error {
	return e.Err
}

// BatchRunner is the slice of the bulk tool the engine depends on: exit
// status and combined textual output, nothing deeper.
type BatchRunner interface {
	RunBatch(ctx context.Context, lines []string, timeout time.Duration) (string, error)
	RunSingle(ctx context.Context, source, dest string, timeout time.Duration) (string, error)
}

// Tool invokes the external bulk-transfer executable (s5cmd by default) as
// a subprocess. The archive allows anonymous reads, so invocations carry the
// no-sign-request flag when configured.
type Tool struct {
	path     string
	workers  int
	retries  int
	noSign   bool
	endpoint string
	logger   *zap.Logger
}

// NewTool creates a tool wrapper. path is the binary name or path looked up
// on PATH at probe time.
func NewTool(path string, workers, retries int, noSign bool, endpoint string, logger *zap.Logger) *Tool {
	if path == "" {
		path = "s5cmd"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{
		path:     path,
		workers:  workers,
		retries:  retries,
		noSign:   noSign,
		endpoint: endpoint,
		logger:   logger,
	}
}

// Probe resolves the tool binary once for the run. A missing binary is not
// an error; the engine falls back to per-request transfers.
func (t *Tool) Probe(ctx context.Context) ToolAvailability {
	resolved, err := exec.LookPath(t.path)
	if err != nil {
		return ToolAvailability{
			Available: false,
			Reason:    fmt.Sprintf("%s not found on PATH", t.path),
		}
	}

	avail := ToolAvailability{Available: true, Path: resolved}

	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(versionCtx, resolved, "version").CombinedOutput(); err == nil {
		avail.Version = strings.TrimSpace(string(out))
	}

	return avail
}

// globalArgs renders the flags shared by every invocation.
func (t *Tool) globalArgs() []string {
	var args []string
	if t.noSign {
		args = append(args, "--no-sign-request")
	}
	if t.endpoint != "" {
		args = append(args, "--endpoint-url", t.endpoint)
	}
	if t.workers > 0 {
		args = append(args, "--numworkers", strconv.Itoa(t.workers))
	}
	if t.retries > 0 {
		args = append(args, "--retry-count", strconv.Itoa(t.retries))
	}
	return args
}

// RunBatch writes the manifest lines to a temp file and executes one bulk
// invocation over it. It returns the tool's combined output; a non-nil error
// alongside output means the tool ran and exited non-zero, while a
// BatchInvocationError means it never ran at all.
func (t *Tool) RunBatch(ctx context.Context, lines []string, timeout time.Duration) (string, error) {
	manifest, err := os.CreateTemp("", "archivesync-batch-*.txt")
	if err != nil {
		return "", &BatchInvocationError{Err: fmt.Errorf("failed to create manifest: %w", err)}
	}
	manifestPath := manifest.Name()
	defer os.Remove(manifestPath)

	for _, line := range lines {
		if _, err := fmt.Fprintln(manifest, line); err != nil {
			manifest.Close()
			return "", &BatchInvocationError{Err: fmt.Errorf("failed to write manifest: %w", err)}
		}
	}
	if err := manifest.Close(); err != nil {
		return "", &BatchInvocationError{Err: fmt.Errorf("failed to close manifest: %w", err)}
	}

	args := append(t.globalArgs(), "run", manifestPath)
	t.logger.Debug("invoking bulk tool",
		zap.String("tool", t.path),
		zap.Int("operations", len(lines)),
		zap.Duration("timeout", timeout))

	return t.run(ctx, args, timeout)
}

// RunSingle executes one copy operation.
func (t *Tool) RunSingle(ctx context.Context, source, dest string, timeout time.Duration) (string, error) {
	args := append(t.globalArgs(), "cp", source, dest)
	return t.run(ctx, args, timeout)
}

// Sync replicates a whole prefix in one invocation. deleteRemoved also
// removes destination objects absent from the source. This is the only code
// path that ever deletes anything.
func (t *Tool) Sync(ctx context.Context, source, dest string, deleteRemoved bool, timeout time.Duration) (string, error) {
	args := t.globalArgs()
	args = append(args, "sync")
	if deleteRemoved {
		args = append(args, "--delete")
	}
	args = append(args, source, dest)
	return t.run(ctx, args, timeout)
}

func (t *Tool) run(ctx context.Context, args []string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.path, args...)
	out, err := cmd.CombinedOutput()
	output := string(out)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("bulk tool timed out after %s", timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("bulk tool exited with code %d", exitErr.ExitCode())
		}
		// The process never started.
		return output, &BatchInvocationError{Err: err}
	}

	return output, nil
}
