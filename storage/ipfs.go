package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/vaccine-ledger/interfaces"
)

// IPFSBackend implements a storage backend on an IPFS node. Content is written
// into the node's mutable file system (MFS) under its content identifier, which
// keeps it pinned and addressable by the ledger's SHA-256 ids.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend connects to the IPFS HTTP API at host:port and stores content below root in MFS.
func NewIPFSBackend(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	if root == "" {
		root = "/vaccine-ledger"
	}
	root = "/" + strings.Trim(root, "/")

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout),
	}, nil
}

// Fetch reads content from MFS. Returns ErrContentNotFound if the file doesn't exist
// or ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	mfsPath := b.getMFSPath(id, contentType)

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.FilesRead(ctx, mfsPath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			b.log.Debug("Content not found in IPFS",
				slog.String("path", mfsPath),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to read %s from IPFS: %w", mfsPath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("path", mfsPath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes data into MFS under its SHA-256 content identifier.
// Returns ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	mfsPath := b.getMFSPath(id, contentType)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	err := b.shell.FilesWrite(ctx, mfsPath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
		shell.FilesWrite.CidVersion(1),
	)
	if err != nil {
		return id, fmt.Errorf("failed to write %s to IPFS: %w", mfsPath, err)
	}

	stat, err := b.shell.FilesStat(ctx, mfsPath)
	if err != nil {
		b.log.Warn("Stored content but failed to stat it", slog.String("path", mfsPath), "err", err)
	} else {
		b.log.Debug("Stored content in IPFS",
			slog.String("path", mfsPath),
			slog.String("ipfsCID", stat.Hash),
			slog.String("contentID", id.String()))
	}

	return id, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getMFSPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return path.Join(b.root, contentType.String(), id.String())
}
