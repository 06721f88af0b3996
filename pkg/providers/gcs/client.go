package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"archivesync/pkg/models"
)

const listPageSize = 1000

// Config locates the destination bucket.
type Config struct {
	Bucket          string
	CredentialsFile string
	ProjectID       string // for bucket creation; resolved from the key file or env when empty
}

// Client wraps the Cloud Storage JSON API for the destination bucket.
// Archives land here only through the staged traditional path; the bulk
// tool does not speak GCS.
type Client struct {
	service *storage.Service
	bucket  string
	project string
	logger  *zap.Logger
}

// NewClient creates a storage client. Extra options override credential
// resolution entirely (tests point them at a fake endpoint).
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs destination requires a bucket")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(opts) == 0 {
		var err error
		opts, err = credentialOptions(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
	}

	service, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	project := cfg.ProjectID
	if project == "" {
		project = resolveProject(cfg.CredentialsFile)
	}

	return &Client{
		service: service,
		bucket:  cfg.Bucket,
		project: project,
		logger:  logger,
	}, nil
}

// Bucket returns the destination bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket verifies the bucket exists, creating it when allowed.
func (c *Client) EnsureBucket(ctx context.Context, create bool) error {
	_, err := c.service.Buckets.Get(c.bucket).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if !create {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}
	if c.project == "" {
		return fmt.Errorf("creating bucket %s requires a project id (set GOOGLE_CLOUD_PROJECT)", c.bucket)
	}

	_, err = c.service.Buckets.Insert(c.project, &storage.Bucket{Name: c.bucket}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	c.logger.Info("created destination bucket",
		zap.String("bucket", c.bucket),
		zap.String("project", c.project))
	return nil
}

// Upload streams one object into the bucket. size is the caller's knowledge
// of the payload, used when the API response omits it.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	inserted, err := c.service.Objects.Insert(c.bucket, &storage.Object{Name: key}).
		Media(r).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if n := int64(inserted.Size); n > 0 {
		return n, nil
	}
	return size, nil
}

// UploadFile uploads a local file, retrying transient API failures. The
// media stream cannot be replayed mid-flight, so each attempt reopens.
func (c *Client) UploadFile(ctx context.Context, key, path string) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		file, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("failed to open %s: %w", path, err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return 0, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		n, err := c.Upload(ctx, key, file, info.Size())
		file.Close()
		if err == nil {
			return n, nil
		}

		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return 0, err
		}
		c.logger.Warn("upload attempt failed",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Error(err))
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return 0, lastErr
}

// Stat reports one object's existence and size.
func (c *Client) Stat(ctx context.Context, key string) (models.ObjectInfo, bool, error) {
	obj, err := c.service.Objects.Get(c.bucket, key).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return models.ObjectInfo{}, false, nil
		}
		return models.ObjectInfo{}, false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return objectInfo(obj), true, nil
}

// List returns every object under the prefix, following pagination.
func (c *Client) List(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error) {
	objects := make(map[string]models.ObjectInfo)
	pageToken := ""
	for {
		call := c.service.Objects.List(c.bucket).
			Prefix(prefix).
			MaxResults(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Items {
			objects[obj.Name] = objectInfo(obj)
		}
		if page.NextPageToken == "" {
			return objects, nil
		}
		pageToken = page.NextPageToken
	}
}

func objectInfo(obj *storage.Object) models.ObjectInfo {
	info := models.ObjectInfo{Key: obj.Name, Size: int64(obj.Size)}
	if obj.Updated != "" {
		if ts, err := time.Parse(time.RFC3339, obj.Updated); err == nil {
			info.LastModified = ts
		}
	}
	return info
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func isTransient(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return true
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
}
