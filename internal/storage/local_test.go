package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	n, err := s.Upload(ctx, "1/20250101000000_ab_notes.md", strings.NewReader("# hello\n"), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	size, err := s.Size(ctx, "1/20250101000000_ab_notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	rc, err := s.Download(ctx, "1/20250101000000_ab_notes.md")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "# hello\n", string(data))

	ok, err := s.Exists(ctx, "1/20250101000000_ab_notes.md")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "1/20250101000000_ab_notes.md"))
	ok, err = s.Exists(ctx, "1/20250101000000_ab_notes.md")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, "1/20250101000000_ab_notes.md"))
}

func TestLocalStorage_Missing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = s.Size(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "../outside.txt", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://abc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.us-east-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:9000", normalizeEndpoint("http://localhost:9000/"))
	assert.Equal(t, "minio.example.com", normalizeEndpoint("https://minio.example.com/bucket/path"))
	assert.Equal(t, "", normalizeEndpoint(""))
}

func TestNewStorage_Local(t *testing.T) {
	s, err := NewStorage(&Config{Type: StorageTypeLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(&Config{Type: "ftp"})
	assert.Error(t, err)
}
