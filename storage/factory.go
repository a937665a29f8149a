package storage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs and
// aggregates them into multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - file:///var/lib/ledger/snapshots
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=minio:9000&path_style=true
//   - ipfs://host:5001/mfs/root?timeout=30s
//   - vault://vault.example.com:8200/secret/vaccine-ledger?tls=true (token from VAULT_TOKEN)
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating storage backend", slog.String("scheme", location.Scheme), slog.String("host", location.Host))

	switch location.Scheme {
	case "file":
		return sf.createFileBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "vault":
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend builds every location and wraps the valid ones in a
// MultiStorageBackend. Returns an error if no backend could be created.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("scheme", location.Scheme),
				slog.String("host", location.Host))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}
	if len(backends) == 1 {
		return backends[0], nil
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend accepts file:///absolute/path and file://./relative/path.
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", interfaces.ErrInvalidLocationURI)
	}

	cfg := S3Config{
		Bucket:    location.Host,
		Prefix:    strings.TrimPrefix(location.Path, "/"),
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		PathStyle: location.GetParamBool("path_style"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if location.Auth != "" {
		accessKey, secretKey, _ := strings.Cut(location.Auth, ":")
		cfg.AccessKey = accessKey
		cfg.SecretKey = secretKey
	}

	return NewS3Backend(cfg, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, found := strings.Cut(location.Host, ":")
	if !found || port == "" {
		port = "5001"
	}
	if host == "" {
		host = "localhost"
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid IPFS timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, location.Path, timeout, sf.log)
}

// createVaultBackend expects vault://host:port/<mount>/<path>.
func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	mount, dataPath, _ := strings.Cut(strings.Trim(location.Path, "/"), "/")
	if location.Host == "" || mount == "" {
		return nil, fmt.Errorf("%w: vault URI needs a host and a mount path", interfaces.ErrInvalidLocationURI)
	}
	if dataPath == "" {
		dataPath = "vaccine-ledger"
	}

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, location.Host), mount, dataPath, os.Getenv("VAULT_TOKEN"), sf.log)
}

var _ interfaces.StorageBackendFactory = (*StorageBackendFactory)(nil)
