package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend implements interfaces.StorageBackend for testing
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.name
}

func (m *MockStorageBackend) LocationURI() string {
	return "mock://" + m.name
}

// replica returns a mock backend that reports the given availability.
func replica(name string, available bool) *MockStorageBackend {
	m := &MockStorageBackend{name: name}
	m.On("Available", mock.Anything).Return(available)
	return m
}

func snapshotPayload(t *testing.T, height uint64) []byte {
	t.Helper()
	data, err := json.Marshal(interfaces.Snapshot{
		Version:   interfaces.SnapshotVersion,
		Owner:     interfaces.Principal{0xde},
		Height:    height,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Validators: []interfaces.Validator{
			{Principal: interfaces.Principal{0x02}, Weight: 40, Height: height},
		},
	})
	require.NoError(t, err)
	return data
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiStorageBackend_Store(t *testing.T) {
	payload := snapshotPayload(t, 3)
	id := interfaces.ComputeID(payload)
	otherID := interfaces.ComputeID(snapshotPayload(t, 4))
	diskFull := errors.New("no space left on device")

	tests := []struct {
		name        string
		contentType interfaces.ContentType
		replicas    func() []*MockStorageBackend
		wantErr     error
	}{
		{
			name:        "snapshot replicated to every replica",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				a, b := replica("a", true), replica("b", true)
				a.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(id, nil)
				b.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(id, nil)
				return []*MockStorageBackend{a, b}
			},
		},
		{
			name:        "sealed snapshot keeps its content type",
			contentType: interfaces.SealedSnapshotType,
			replicas: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Store", mock.Anything, payload, interfaces.SealedSnapshotType).Return(id, nil)
				return []*MockStorageBackend{a}
			},
		},
		{
			name:        "one replica failing is tolerated",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				a, b := replica("a", true), replica("b", true)
				a.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(interfaces.ContentID{}, diskFull)
				b.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(id, nil)
				return []*MockStorageBackend{a, b}
			},
		},
		{
			name:        "offline replica is not written",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				a, b := replica("a", false), replica("b", true)
				b.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(id, nil)
				return []*MockStorageBackend{a, b}
			},
		},
		{
			name:        "every replica failing",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(interfaces.ContentID{}, diskFull)
				return []*MockStorageBackend{a}
			},
			wantErr: diskFull,
		},
		{
			name:        "replica reporting another content id",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Store", mock.Anything, payload, interfaces.SnapshotType).Return(otherID, nil)
				return []*MockStorageBackend{a}
			},
			wantErr: errors.New("returned content id"),
		},
		{
			name:        "no replica online",
			contentType: interfaces.SnapshotType,
			replicas: func() []*MockStorageBackend {
				return []*MockStorageBackend{replica("a", false), replica("b", false)}
			},
			wantErr: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replicas := tt.replicas()
			backends := make([]interfaces.StorageBackend, len(replicas))
			for i, r := range replicas {
				backends[i] = r
			}

			got, err := NewMultiStorageBackend(backends, discardLogger()).Store(context.Background(), payload, tt.contentType)
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, id, got)
			case errors.Is(err, tt.wantErr):
				assert.Equal(t, interfaces.ContentID{}, got)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}

			for _, r := range replicas {
				r.AssertExpectations(t)
			}
		})
	}
}

func TestMultiStorageBackend_Fetch(t *testing.T) {
	payload := snapshotPayload(t, 7)
	id := interfaces.ComputeID(payload)

	t.Run("first replica holding the snapshot wins", func(t *testing.T) {
		offline, missing, holder, unused := replica("offline", false), replica("missing", true), replica("holder", true), &MockStorageBackend{name: "unused"}
		missing.On("Fetch", mock.Anything, id, interfaces.SnapshotType).Return(nil, interfaces.ErrContentNotFound)
		holder.On("Fetch", mock.Anything, id, interfaces.SnapshotType).Return(payload, nil)

		multi := NewMultiStorageBackend([]interfaces.StorageBackend{offline, missing, holder, unused}, discardLogger())
		data, err := multi.Fetch(context.Background(), id, interfaces.SnapshotType)
		require.NoError(t, err)
		assert.Equal(t, payload, data)

		for _, r := range []*MockStorageBackend{offline, missing, holder, unused} {
			r.AssertExpectations(t)
		}
	})

	t.Run("snapshot missing everywhere", func(t *testing.T) {
		a, b := replica("a", true), replica("b", true)
		a.On("Fetch", mock.Anything, id, interfaces.SealedSnapshotType).Return(nil, interfaces.ErrContentNotFound)
		b.On("Fetch", mock.Anything, id, interfaces.SealedSnapshotType).Return(nil, interfaces.ErrContentNotFound)

		_, err := NewMultiStorageBackend([]interfaces.StorageBackend{a, b}, discardLogger()).Fetch(context.Background(), id, interfaces.SealedSnapshotType)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
		assert.Contains(t, err.Error(), "a:")
		assert.Contains(t, err.Error(), "b:")
	})

	t.Run("no replica online", func(t *testing.T) {
		_, err := NewMultiStorageBackend([]interfaces.StorageBackend{replica("a", false)}, discardLogger()).Fetch(context.Background(), id, interfaces.SnapshotType)
		assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	})
}

func TestMultiStorageBackend_FileReplicas(t *testing.T) {
	primaryDir, secondaryDir := t.TempDir(), t.TempDir()
	primary, err := NewFileBackend(primaryDir, discardLogger())
	require.NoError(t, err)
	secondary, err := NewFileBackend(secondaryDir, discardLogger())
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, secondary}, discardLogger())
	payload := snapshotPayload(t, 12)

	id, err := multi.Store(context.Background(), payload, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(payload), id)

	// Losing the primary copy falls back to the secondary.
	require.NoError(t, os.Remove(filepath.Join(primaryDir, "snapshots", id.String())))
	data, err := multi.Fetch(context.Background(), id, interfaces.SnapshotType)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestMultiStorageBackend_AvailableAndLocation(t *testing.T) {
	assert.False(t, NewMultiStorageBackend(nil, nil).Available(context.Background()))
	assert.False(t, NewMultiStorageBackend([]interfaces.StorageBackend{replica("a", false)}, nil).Available(context.Background()))
	assert.True(t, NewMultiStorageBackend([]interfaces.StorageBackend{replica("a", false), replica("b", true)}, nil).Available(context.Background()))

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{
		&MockStorageBackend{name: "a"},
		&MockStorageBackend{name: "b"},
	}, nil)
	assert.Equal(t, "multi:[mock://a,mock://b]", multi.LocationURI())
	assert.Equal(t, "multi-storage", multi.Name())
}
