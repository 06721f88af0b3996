package pool

import (
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ConnectionPool holds a fixed set of S3 clients handed out round-robin so
// parallel listings and server-side copies spread across transports instead
// of funneling through one.
type ConnectionPool struct {
	clients    []*s3.Client
	size       int
	currentIdx atomic.Int32
	created    time.Time
	requests   atomic.Int64
	errors     atomic.Int64
}

// PoolOptions configures client construction.
type PoolOptions struct {
	Size      int
	Endpoint  string // S3-compatible endpoint override; empty for AWS
	PathStyle bool   // path-style addressing (MinIO and most gateways)
}

// NewConnectionPool builds the pool from an already-resolved AWS config.
// Credential resolution happens upstream; this only shapes the clients.
func NewConnectionPool(awsCfg aws.Config, opts PoolOptions) *ConnectionPool {
	size := opts.Size
	if size <= 0 {
		size = 4
	}

	pool := &ConnectionPool{
		clients: make([]*s3.Client, size),
		size:    size,
		created: time.Now(),
	}

	for i := 0; i < size; i++ {
		pool.clients[i] = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
			}
			if opts.PathStyle {
				o.UsePathStyle = true
			}
		})
	}

	return pool
}

// GetClient retrieves a client from the pool using round-robin
func (cp *ConnectionPool) GetClient() *s3.Client {
	cp.requests.Add(1)

	idx := cp.currentIdx.Add(1)
	if idx < 0 {
		idx = -idx
	}

	return cp.clients[int(idx)%cp.size]
}

// GetClientByKey retrieves a client using consistent hashing based on a key
func (cp *ConnectionPool) GetClientByKey(key string) *s3.Client {
	cp.requests.Add(1)

	hash := hashString(key)

	return cp.clients[int(hash)%cp.size]
}

// RecordError records an error for statistics
func (cp *ConnectionPool) RecordError() {
	cp.errors.Add(1)
}

// Stats returns connection pool statistics
type ConnectionPoolStats struct {
	Size          int           `json:"size"`
	TotalRequests int64         `json:"total_requests"`
	TotalErrors   int64         `json:"total_errors"`
	Uptime        time.Duration `json:"uptime"`
	ErrorRate     float64       `json:"error_rate"`
}

func (cp *ConnectionPool) Stats() ConnectionPoolStats {
	requests := cp.requests.Load()
	errors := cp.errors.Load()

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	return ConnectionPoolStats{
		Size:          cp.size,
		TotalRequests: requests,
		TotalErrors:   errors,
		Uptime:        time.Since(cp.created),
		ErrorRate:     errorRate,
	}
}

// Simple hash function for consistent hashing
func hashString(s string) uint32 {
	h := uint32(0)
	for i := 0; i < len(s); i++ {
		h = 31*h + uint32(s[i])
	}
	return h
}
