package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"archivesync/pkg/config"
	"archivesync/pkg/layout"
	"archivesync/pkg/models"
)

// PathResolver turns one IngestionTask into a TransferRequest. It is a pure
// function of the task and the static run configuration: the same task
// always resolves to the same source and destination.
type PathResolver struct {
	layout *layout.Service
	source config.SourceConfig
	dest   config.DestinationConfig
}

// NewPathResolver builds a resolver for one run's source and destination.
func NewPathResolver(svc *layout.Service, cfg *config.Config) *PathResolver {
	return &PathResolver{layout: svc, source: cfg.Source, dest: cfg.Destination}
}

// Resolve computes the source URI and destination path for a task.
func (p *PathResolver) Resolve(task models.IngestionTask) (models.TransferRequest, error) {
	dateStr, err := archiveDateString(task)
	if err != nil {
		return models.TransferRequest{}, err
	}

	interval := task.Interval
	if interval != "" && !models.ValidInterval(interval) {
		interval = ""
	}

	filename := archiveFilename(task, interval, dateStr)
	sourcePath := p.sourcePath(task, interval, dateStr, filename)

	destDir := p.layout.RelativePath(
		task.TargetZone,
		task.Exchange,
		string(task.DataType),
		string(task.Market),
		task.Symbol,
		dateStr,
	)
	destPath := path.Join(destDir, filename)

	return models.TransferRequest{
		Task:       task,
		SourcePath: sourcePath,
		SourceURI:  "s3://" + p.source.Bucket + "/" + sourcePath,
		SourceURL:  strings.TrimSuffix(p.source.BaseURL, "/") + "/" + sourcePath,
		DestPath:   destPath,
		DestURI:    p.destURI(destPath),
	}, nil
}

// destURI renders the absolute destination for a relative path.
func (p *PathResolver) destURI(destPath string) string {
	switch p.dest.Kind {
	case config.DestS3:
		return "s3://" + p.dest.Bucket + "/" + joinPrefix(p.dest.Prefix, destPath)
	case config.DestGCS:
		return "gs://" + p.dest.Bucket + "/" + joinPrefix(p.dest.Prefix, destPath)
	default:
		return filepath.Join(p.dest.LocalRoot, filepath.FromSlash(destPath))
	}
}

// sourcePath renders the relative path of the archive file, preferring the
// matrix entry's template over the fixed path convention.
func (p *PathResolver) sourcePath(task models.IngestionTask, interval, dateStr, filename string) string {
	if task.URLPattern != "" {
		dir := substitute(task.URLPattern, task, interval, dateStr)
		return joinPrefix(strings.Trim(dir, "/"), filename)
	}

	segments := []string{
		task.Market.ArchivePath(),
		string(task.PartitionType),
		task.RawDataType,
		task.Symbol,
	}
	if interval != "" {
		segments = append(segments, interval)
	}
	segments = append(segments, filename)
	return path.Join(segments...)
}

// archiveFilename renders the file name, preferring the matrix entry's
// template. The default convention is {symbol}-{interval-or-dataType}-{date}.zip.
func archiveFilename(task models.IngestionTask, interval, dateStr string) string {
	if task.FilenamePattern != "" {
		return substitute(task.FilenamePattern, task, interval, dateStr)
	}
	middle := interval
	if middle == "" {
		middle = task.RawDataType
	}
	return fmt.Sprintf("%s-%s-%s.zip", task.Symbol, middle, dateStr)
}

// substitute fills the template placeholders shared by url and filename
// patterns.
func substitute(pattern string, task models.IngestionTask, interval, dateStr string) string {
	out := pattern
	out = strings.ReplaceAll(out, "{market}", task.Market.ArchivePath())
	out = strings.ReplaceAll(out, "{partition}", string(task.PartitionType))
	out = strings.ReplaceAll(out, "{dataType}", task.RawDataType)
	out = strings.ReplaceAll(out, "{symbol}", task.Symbol)
	out = strings.ReplaceAll(out, "{interval}", interval)
	out = strings.ReplaceAll(out, "{date}", dateStr)
	return out
}

// archiveDateString formats the task's nominal date for path construction.
// Daily partitions use the day itself; monthly partitions name the previous
// calendar month, matching the archive's publication lag.
func archiveDateString(task models.IngestionTask) (string, error) {
	day, err := time.Parse("2006-01-02", task.ArchiveDate)
	if err != nil {
		return "", fmt.Errorf("unparseable archive date %q: %w", task.ArchiveDate, err)
	}
	if task.PartitionType == models.PartitionMonthly {
		firstOfMonth := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return firstOfMonth.AddDate(0, -1, 0).Format("2006-01"), nil
	}
	return day.Format("2006-01-02"), nil
}

// joinPrefix joins an optional prefix with a relative path using forward
// slashes, for remote object keys.
func joinPrefix(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}
