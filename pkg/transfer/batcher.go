package transfer

import (
	"fmt"
	"strings"

	"archivesync/pkg/models"
)

// Partition splits requests into fixed-size batches, preserving order.
func Partition(requests []models.TransferRequest, size int) [][]models.TransferRequest {
	if size <= 0 {
		size = 100
	}

	var batches [][]models.TransferRequest
	for i := 0; i < len(requests); i += size {
		end := i + size
		if end > len(requests) {
			end = len(requests)
		}
		batches = append(batches, requests[i:end])
	}
	return batches
}

// ManifestLines renders one bulk-tool copy operation per request. The
// destination URI form already encodes the strategy: a remote URI makes the
// tool copy server-side, a local path makes it download.
func ManifestLines(requests []models.TransferRequest) []string {
	lines := make([]string, 0, len(requests))
	for _, req := range requests {
		lines = append(lines, fmt.Sprintf("cp %s %s", req.SourceURI, req.DestURI))
	}
	return lines
}

// ParseS3URI splits an s3://bucket/key URI into bucket and key.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
