package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"archivesync/pkg/config"
	"archivesync/pkg/models"
	"archivesync/pkg/pool"
	"archivesync/pkg/providers/gcs"
)

// Destination is the write side of a collection run. Paths are relative to
// the destination root; URI renders the absolute form the transfer engine
// and the resume filter agree on.
type Destination interface {
	Kind() string
	Root() string
	EnsureReady(ctx context.Context) error
	Exists(ctx context.Context, relPath string) (bool, int64, error)
	ListPrefix(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error)
	Upload(ctx context.Context, relPath, localFile string) (int64, error)
	URI(relPath string) string
}

// NewDestination builds the destination for the configured kind. S3 gets a
// connection pool with provider-appropriate addressing; GCS resolves
// credentials through the key file or the default chain.
func NewDestination(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Destination, error) {
	switch cfg.Destination.Kind {
	case config.DestS3:
		awsCfg, err := config.DestinationAWSConfig(ctx, cfg.Destination)
		if err != nil {
			return nil, err
		}
		provider := config.DetectProvider(cfg.Destination.Endpoint)
		connections := pool.NewConnectionPool(awsCfg, pool.PoolOptions{
			Size:      cfg.Concurrency,
			Endpoint:  cfg.Destination.Endpoint,
			PathStyle: config.ForcePathStyle(provider),
		})
		return NewS3Destination(connections, cfg.Destination, logger), nil
	case config.DestGCS:
		client, err := gcs.NewClient(ctx, gcs.Config{
			Bucket:          cfg.Destination.Bucket,
			CredentialsFile: cfg.Destination.CredentialsFile,
		}, logger)
		if err != nil {
			return nil, err
		}
		return NewGCSDestination(client, cfg.Destination, logger), nil
	default:
		return NewLocalDestination(cfg.Destination.LocalRoot, logger), nil
	}
}

// LocalDestination materializes archives on the local filesystem.
type LocalDestination struct {
	root   string
	logger *zap.Logger
}

// NewLocalDestination creates a destination rooted at a directory.
func NewLocalDestination(root string, logger *zap.Logger) *LocalDestination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalDestination{root: root, logger: logger}
}

func (d *LocalDestination) Kind() string { return config.DestLocal }

func (d *LocalDestination) Root() string { return d.root }

// EnsureReady creates the root directory tree.
func (d *LocalDestination) EnsureReady(ctx context.Context) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("failed to create destination root %s: %w", d.root, err)
	}
	return nil
}

// Exists reports whether a regular non-empty candidate sits at the path.
// Directories and special files never count as a materialized archive.
func (d *LocalDestination) Exists(ctx context.Context, relPath string) (bool, int64, error) {
	info, err := os.Stat(d.localPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	if !info.Mode().IsRegular() {
		return false, 0, nil
	}
	return true, info.Size(), nil
}

// ListPrefix walks the subtree under prefix. A missing directory is an empty
// listing, not an error.
func (d *LocalDestination) ListPrefix(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error) {
	if prefix == "." {
		prefix = ""
	}
	objects := make(map[string]models.ObjectInfo)
	err := filepath.WalkDir(d.localPath(prefix), func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		objects[key] = models.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return objects, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return objects, nil
}

// Upload copies a staged file into the tree. The transfer engine writes
// local destinations in place, so this only runs for explicit re-homing.
func (d *LocalDestination) Upload(ctx context.Context, relPath, localFile string) (int64, error) {
	target := d.localPath(relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	src, err := os.Open(localFile)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return n, nil
}

func (d *LocalDestination) URI(relPath string) string {
	return d.localPath(relPath)
}

func (d *LocalDestination) localPath(relPath string) string {
	return filepath.Join(d.root, filepath.FromSlash(relPath))
}

// S3Destination writes archives to an S3-compatible bucket through the
// connection pool.
type S3Destination struct {
	connections *pool.ConnectionPool
	bucket      string
	prefix      string
	region      string
	create      bool
	logger      *zap.Logger
}

// NewS3Destination wraps an existing connection pool. The pool's endpoint
// and addressing style were chosen at construction.
func NewS3Destination(connections *pool.ConnectionPool, dst config.DestinationConfig, logger *zap.Logger) *S3Destination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Destination{
		connections: connections,
		bucket:      dst.Bucket,
		prefix:      strings.Trim(dst.Prefix, "/"),
		region:      dst.Region,
		create:      dst.CreateBucket,
		logger:      logger,
	}
}

func (d *S3Destination) Kind() string { return config.DestS3 }

func (d *S3Destination) Root() string { return "s3://" + d.bucket + "/" + d.prefix }

// Connections exposes the pool so direct-sync copies can reuse the same
// clients.
func (d *S3Destination) Connections() *pool.ConnectionPool { return d.connections }

// EnsureReady verifies the bucket exists, creating it when configured to.
func (d *S3Destination) EnsureReady(ctx context.Context) error {
	client := d.connections.GetClient()
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.bucket)})
	if err == nil {
		return nil
	}
	if !bucketMissing(err) {
		d.connections.RecordError()
		return fmt.Errorf("failed to check bucket %s: %w", d.bucket, err)
	}
	if !d.create {
		return fmt.Errorf("destination bucket %s does not exist", d.bucket)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(d.bucket)}
	// us-east-1 rejects an explicit LocationConstraint.
	if d.region != "" && d.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(d.region),
		}
	}
	if _, err := client.CreateBucket(ctx, input); err != nil {
		d.connections.RecordError()
		return fmt.Errorf("failed to create bucket %s: %w", d.bucket, err)
	}
	d.logger.Info("created destination bucket", zap.String("bucket", d.bucket))
	return nil
}

func (d *S3Destination) Exists(ctx context.Context, relPath string) (bool, int64, error) {
	key := joinKey(d.prefix, relPath)
	head, err := d.connections.GetClientByKey(key).HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if objectMissing(err) {
			return false, 0, nil
		}
		d.connections.RecordError()
		return false, 0, err
	}
	return true, aws.ToInt64(head.ContentLength), nil
}

// ListPrefix pages through every object below the prefix, keyed relative to
// the destination root.
func (d *S3Destination) ListPrefix(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error) {
	if prefix == "." {
		prefix = ""
	}
	listPrefix := joinKey(d.prefix, prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(d.connections.GetClient(), &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(listPrefix),
	})

	objects := make(map[string]models.ObjectInfo)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			d.connections.RecordError()
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", d.bucket, listPrefix, err)
		}
		for _, obj := range page.Contents {
			key := stripKey(d.prefix, aws.ToString(obj.Key))
			objects[key] = models.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			}
		}
	}
	return objects, nil
}

func (d *S3Destination) Upload(ctx context.Context, relPath, localFile string) (int64, error) {
	f, err := os.Open(localFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	key := joinKey(d.prefix, relPath)
	_, err = d.connections.GetClientByKey(key).PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		d.connections.RecordError()
		return 0, fmt.Errorf("failed to upload s3://%s/%s: %w", d.bucket, key, err)
	}
	return info.Size(), nil
}

func (d *S3Destination) URI(relPath string) string {
	return "s3://" + d.bucket + "/" + joinKey(d.prefix, relPath)
}

// GCSDestination writes archives to a Cloud Storage bucket. Only the
// per-request strategy can reach it; the bulk tool speaks S3.
type GCSDestination struct {
	client *gcs.Client
	prefix string
	create bool
	logger *zap.Logger
}

// NewGCSDestination wraps an authenticated storage client.
func NewGCSDestination(client *gcs.Client, dst config.DestinationConfig, logger *zap.Logger) *GCSDestination {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSDestination{
		client: client,
		prefix: strings.Trim(dst.Prefix, "/"),
		create: dst.CreateBucket,
		logger: logger,
	}
}

func (d *GCSDestination) Kind() string { return config.DestGCS }

func (d *GCSDestination) Root() string { return "gs://" + d.client.Bucket() + "/" + d.prefix }

func (d *GCSDestination) EnsureReady(ctx context.Context) error {
	return d.client.EnsureBucket(ctx, d.create)
}

func (d *GCSDestination) Exists(ctx context.Context, relPath string) (bool, int64, error) {
	info, found, err := d.client.Stat(ctx, joinKey(d.prefix, relPath))
	if err != nil || !found {
		return false, 0, err
	}
	return true, info.Size, nil
}

func (d *GCSDestination) ListPrefix(ctx context.Context, prefix string) (map[string]models.ObjectInfo, error) {
	if prefix == "." {
		prefix = ""
	}
	listPrefix := joinKey(d.prefix, prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	listed, err := d.client.List(ctx, listPrefix)
	if err != nil {
		return nil, err
	}
	objects := make(map[string]models.ObjectInfo, len(listed))
	for key, info := range listed {
		rel := stripKey(d.prefix, key)
		info.Key = rel
		objects[rel] = info
	}
	return objects, nil
}

func (d *GCSDestination) Upload(ctx context.Context, relPath, localFile string) (int64, error) {
	return d.client.UploadFile(ctx, joinKey(d.prefix, relPath), localFile)
}

func (d *GCSDestination) URI(relPath string) string {
	return "gs://" + d.client.Bucket() + "/" + joinKey(d.prefix, relPath)
}

// joinKey joins an optional key prefix with a root-relative path.
func joinKey(prefix, rel string) string {
	rel = strings.Trim(rel, "/")
	if prefix == "" {
		return rel
	}
	if rel == "" {
		return prefix
	}
	return prefix + "/" + rel
}

// stripKey converts a full object key back to a root-relative path.
func stripKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}

// bucketMissing matches the not-found shapes S3-compatible services return
// from HeadBucket. The string fallback covers gateways that skip the
// modeled error types.
func bucketMissing(err error) bool {
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchBucket") || strings.Contains(msg, "404")
}

func objectMissing(err error) bool {
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
