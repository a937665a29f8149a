package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_StoreFetch(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	require.True(t, backend.Available(context.Background()))

	data := []byte(`{"version":1}`)
	id, err := backend.Store(context.Background(), data, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	_, err = os.Stat(filepath.Join(dir, "snapshots", id.String()))
	require.NoError(t, err)

	fetched, err := backend.Fetch(context.Background(), id, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	// Content types live in separate namespaces.
	_, err = backend.Fetch(context.Background(), id, interfaces.SealedSnapshotType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	// Storing the same content again is idempotent.
	again, err := backend.Store(context.Background(), data, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_UnsupportedType(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	_, err = backend.Store(context.Background(), []byte("x"), interfaces.ContentType(42))
	assert.Error(t, err)
}

func TestFileBackend_Unavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := filepath.Join(t.TempDir(), "store")
	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, backend.Available(context.Background()))
	assert.Equal(t, "file-store", backend.Name())
	assert.Equal(t, "file://"+dir, backend.LocationURI())
}
