package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"golang.org/x/sync/errgroup"
)

// MultiStorageBackend replicates content to several backends and reads from
// the first one that has it.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch tries each available backend in order and returns the first hit.
func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend", backend.Name()),
				slog.String("contentID", id.String()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend", backend.Name()),
				slog.String("contentID", id.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend", backend.Name()),
			slog.String("contentID", id.String()),
			"err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Store writes data to every available backend concurrently. It succeeds when
// at least one backend stored the content.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	start := time.Now()
	expected := interfaces.ComputeID(data)

	var (
		mu     sync.Mutex
		stored int
		errs   []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, backend := range m.backends {
		backend := backend
		g.Go(func() error {
			if !backend.Available(gctx) {
				m.log.Debug("Backend unavailable", slog.String("backend", backend.Name()))
				return nil
			}

			id, err := backend.Store(gctx, data, contentType)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
				m.log.Warn("Failed to store to backend",
					slog.String("backend", backend.Name()),
					"err", err)
			case id != expected:
				errs = append(errs, fmt.Errorf("%s: returned content id %s, expected %s", backend.Name(), id, expected))
			default:
				stored++
			}
			// Failures of one backend must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	if stored == 0 {
		m.log.Error("All backends failed to store data",
			slog.Int("failedBackends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return interfaces.ContentID{}, interfaces.ErrBackendUnavailable
		}
		return interfaces.ContentID{}, fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("contentID", expected.String()),
		slog.Int("replicas", stored),
		slog.Int("failedBackends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return expected, nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI joins the locations of every member backend.
func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
