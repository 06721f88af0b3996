package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("abc")
const abcDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestStreamingHasher(t *testing.T) {
	h := NewStreamingHasher()
	n, err := h.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), h.Size())
	assert.Equal(t, abcDigest, h.SHA256())
}

func TestParseSidecar(t *testing.T) {
	digest, err := ParseSidecar([]byte(abcDigest + "  BTCUSDT-1m-2024-01-01.zip\n"))
	require.NoError(t, err)
	assert.Equal(t, abcDigest, digest)

	// Uppercase digests normalize.
	digest, err = ParseSidecar([]byte("BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD *file.zip"))
	require.NoError(t, err)
	assert.Equal(t, abcDigest, digest)

	_, err = ParseSidecar([]byte(""))
	assert.Error(t, err)

	_, err = ParseSidecar([]byte("nothex  file.zip"))
	assert.Error(t, err)

	_, err = ParseSidecar([]byte("abc123  file.zip"))
	assert.Error(t, err)
}

func TestVerifyMatch(t *testing.T) {
	h := NewStreamingHasher()
	h.Write([]byte("abc"))

	result := Verify(h, []byte(abcDigest+"  a.zip"))
	assert.True(t, result.Valid)
	assert.True(t, result.HashOK)
	assert.True(t, result.SizeOK)
	assert.Empty(t, result.Message)
}

func TestVerifyMismatch(t *testing.T) {
	h := NewStreamingHasher()
	h.Write([]byte("abd"))

	result := Verify(h, []byte(abcDigest+"  a.zip"))
	assert.False(t, result.Valid)
	assert.False(t, result.HashOK)
	assert.Contains(t, result.Message, "sha256 mismatch")
}

func TestVerifyEmptyArchive(t *testing.T) {
	h := NewStreamingHasher()

	result := Verify(h, []byte("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  empty.zip"))
	// The digest of zero bytes matches, yet an empty archive is rejected.
	assert.True(t, result.HashOK)
	assert.False(t, result.SizeOK)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Message, "empty archive")
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	result, err := VerifyFile(path, []byte(abcDigest+"  a.zip"))
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = VerifyFile(filepath.Join(t.TempDir(), "missing.zip"), []byte(abcDigest))
	assert.Error(t, err)
}
