package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsync/obsync/pkg/chunkstore"
)

func TestNewRequiresBasePath(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := New(Config{BasePath: file})
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	st, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	data := []byte("encrypted chunk payload")

	key, err := st.WriteChunk(ctx, "abc123", 0, data)
	require.NoError(t, err)
	assert.Equal(t, "blobs/abc123/0.bin", key)

	got, err := st.ReadChunk(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// No temp files survive a completed write.
	entries, err := os.ReadDir(filepath.Join(st.BasePath(), "blobs", "abc123"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0.bin", entries[0].Name())
}

func TestWriteChunkOverwritesExisting(t *testing.T) {
	st, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()

	key, err := st.WriteChunk(ctx, "abc123", 1, []byte("first"))
	require.NoError(t, err)

	_, err = st.WriteChunk(ctx, "abc123", 1, []byte("second"))
	require.NoError(t, err)

	got, err := st.ReadChunk(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestReadChunkMissing(t *testing.T) {
	st, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.ReadChunk(context.Background(), "blobs/unknown/0.bin")
	assert.ErrorIs(t, err, chunkstore.ErrChunkNotFound)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	st, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	ctx := context.Background()

	_, err = st.WriteChunk(ctx, "abc123", 0, []byte("x"))
	assert.ErrorIs(t, err, chunkstore.ErrStoreClosed)

	_, err = st.ReadChunk(ctx, "blobs/abc123/0.bin")
	assert.ErrorIs(t, err, chunkstore.ErrStoreClosed)

	assert.ErrorIs(t, st.HealthCheck(ctx), chunkstore.ErrStoreClosed)
}

func TestHealthCheck(t *testing.T) {
	st, err := NewWithPath(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	assert.NoError(t, st.HealthCheck(context.Background()))
}
