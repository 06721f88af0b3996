package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// StreamingHasher calculates the archive digest while the download streams,
// so verification costs no second pass over the file.
type StreamingHasher struct {
	sha256Hash hash.Hash
	size       int64
}

// NewStreamingHasher creates a new streaming hasher
func NewStreamingHasher() *StreamingHasher {
	return &StreamingHasher{
		sha256Hash: sha256.New(),
	}
}

// Write implements io.Writer; it observes the bytes flowing to disk.
func (sh *StreamingHasher) Write(p []byte) (int, error) {
	n, err := sh.sha256Hash.Write(p)
	sh.size += int64(n)
	return n, err
}

// SHA256 returns the hex digest of everything written so far.
func (sh *StreamingHasher) SHA256() string {
	return hex.EncodeToString(sh.sha256Hash.Sum(nil))
}

// Size returns the number of bytes written so far.
func (sh *StreamingHasher) Size() int64 {
	return sh.size
}

// Result describes one verification.
type Result struct {
	SHA256   string `json:"sha256"`
	Expected string `json:"expected"`
	Size     int64  `json:"size"`
	SizeOK   bool   `json:"size_ok"`
	HashOK   bool   `json:"hash_ok"`
	Valid    bool   `json:"valid"`
	Message  string `json:"message,omitempty"`
}

// ParseSidecar extracts the digest from a published checksum sidecar. The
// archive publishes sha256sum output: "<hex digest>  <filename>".
func ParseSidecar(data []byte) (string, error) {
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		digest := strings.ToLower(fields[0])
		if len(digest) != sha256.Size*2 {
			return "", fmt.Errorf("malformed checksum sidecar: %q", strings.TrimSpace(line))
		}
		if _, err := hex.DecodeString(digest); err != nil {
			return "", fmt.Errorf("malformed checksum sidecar: %q", strings.TrimSpace(line))
		}
		return digest, nil
	}
	return "", fmt.Errorf("empty checksum sidecar")
}

// Verify compares the streamed digest against the sidecar digest and applies
// the size sanity check (a zero-byte archive is never valid).
func Verify(hasher *StreamingHasher, sidecar []byte) Result {
	result := Result{
		SHA256: hasher.SHA256(),
		Size:   hasher.Size(),
		SizeOK: hasher.Size() > 0,
	}

	expected, err := ParseSidecar(sidecar)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Expected = expected
	result.HashOK = result.SHA256 == expected
	result.Valid = result.SizeOK && result.HashOK

	if !result.Valid {
		var problems []string
		if !result.SizeOK {
			problems = append(problems, "empty archive")
		}
		if !result.HashOK {
			problems = append(problems, fmt.Sprintf("sha256 mismatch: got %s, want %s", result.SHA256, expected))
		}
		result.Message = strings.Join(problems, "; ")
	}

	return result
}

// VerifyFile hashes an already-materialized archive and verifies it against
// the sidecar. Used when the transfer path had no streaming hash attached.
func VerifyFile(path string, sidecar []byte) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	hasher := NewStreamingHasher()
	if _, err := io.Copy(hasher, file); err != nil {
		return Result{}, fmt.Errorf("failed to hash archive: %w", err)
	}

	return Verify(hasher, sidecar), nil
}
