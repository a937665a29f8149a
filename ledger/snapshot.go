package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

var _ interfaces.Ledger = (*Network)(nil)

// ExportSnapshot dumps the complete state at the current height and stores it
// in the configured snapshot storage. Only the owner may export.
func (n *Network) ExportSnapshot(ctx context.Context, caller interfaces.Principal) (_ *interfaces.SnapshotReceipt, err error) {
	ctx, span := n.startSpan(ctx, OpExportSnapshot, caller)
	defer func(start time.Time) { n.finish(span, OpExportSnapshot, start, err) }(time.Now())

	if caller != n.cfg.Owner {
		return nil, fmt.Errorf("%w: %s is not the network owner", interfaces.ErrUnauthorized, caller)
	}
	if n.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}

	n.mu.Lock()
	snapshot, err := n.store.Dump()
	n.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to dump state: %w", err)
	}
	snapshot.CreatedAt = n.now().UTC()

	data, contentType, err := EncodeSnapshot(snapshot, n.passphrase)
	if err != nil {
		return nil, err
	}

	id, err := n.snapshots.Store(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	n.log.Info("Exported ledger snapshot",
		"contentID", id.String(),
		"location", n.snapshots.LocationURI(),
		"height", snapshot.Height,
		"encrypted", contentType == interfaces.SealedSnapshotType)

	return &interfaces.SnapshotReceipt{
		ContentID: id,
		Location:  n.snapshots.LocationURI(),
		Height:    snapshot.Height,
		Encrypted: contentType == interfaces.SealedSnapshotType,
	}, nil
}

// EncodeSnapshot serializes a snapshot, sealing it when passphrase is not empty.
// The returned content type is the storage namespace matching the encoding.
func EncodeSnapshot(snapshot *interfaces.Snapshot, passphrase []byte) ([]byte, interfaces.ContentType, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if len(passphrase) == 0 {
		return data, interfaces.SnapshotType, nil
	}

	sealed, err := SealSnapshot(data, passphrase)
	if err != nil {
		return nil, 0, err
	}
	return sealed, interfaces.SealedSnapshotType, nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte, passphrase []byte) (*interfaces.Snapshot, error) {
	if len(passphrase) > 0 {
		opened, err := OpenSnapshot(data, passphrase)
		if err != nil {
			return nil, err
		}
		data = opened
	}

	var snapshot interfaces.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Version != interfaces.SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	if snapshot.Owner.IsZero() {
		return nil, errors.New("snapshot has no owner")
	}
	return &snapshot, nil
}

// RestoreSnapshot loads snapshot id from backend into an empty store as one commit.
// Every record is checked against the rules the live operations enforce before
// anything is written. It must run before NewNetwork opens the store.
func RestoreSnapshot(ctx context.Context, store interfaces.StateStore, backend interfaces.StorageBackend, id interfaces.ContentID, passphrase string, log *slog.Logger) (*interfaces.Snapshot, error) {
	if _, err := store.Owner(); !errors.Is(err, interfaces.ErrRecordNotFound) {
		if err == nil {
			return nil, interfaces.ErrStoreNotEmpty
		}
		return nil, fmt.Errorf("failed to inspect state store: %w", err)
	}

	contentType := interfaces.SnapshotType
	if passphrase != "" {
		contentType = interfaces.SealedSnapshotType
	}

	data, err := backend.Fetch(ctx, id, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %s: %w", id, err)
	}
	if interfaces.ComputeID(data) != id {
		return nil, fmt.Errorf("snapshot %s failed content verification", id)
	}

	snapshot, err := DecodeSnapshot(data, []byte(passphrase))
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(snapshot); err != nil {
		return nil, err
	}

	owner := snapshot.Owner
	err = store.Commit(&interfaces.Changeset{
		Height:      snapshot.Height,
		Owner:       &owner,
		Researchers: snapshot.Researchers,
		Submissions: snapshot.Submissions,
		Validators:  snapshot.Validators,
		Events:      snapshot.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	log.Info("Restored ledger snapshot",
		"contentID", id.String(),
		"owner", snapshot.Owner,
		"height", snapshot.Height,
		"researchers", len(snapshot.Researchers),
		"submissions", len(snapshot.Submissions),
		"validators", len(snapshot.Validators))

	return snapshot, nil
}

// validateSnapshot checks that a decoded snapshot could have been produced by
// the ledger operations: well-formed fields, unique keys, submitters that are
// registered researchers, and one journal event per height.
func validateSnapshot(snapshot *interfaces.Snapshot) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
	}
	checkHeight := func(kind, key string, height uint64) error {
		if height == 0 || height > snapshot.Height {
			return invalid("%s %s has height %d outside 1..%d", kind, key, height, snapshot.Height)
		}
		return nil
	}

	researchers := make(map[interfaces.Principal]struct{}, len(snapshot.Researchers))
	for _, r := range snapshot.Researchers {
		if _, ok := researchers[r.Principal]; ok {
			return invalid("researcher %s listed twice", r.Principal)
		}
		researchers[r.Principal] = struct{}{}
		if err := validateInstitution(r.Institution); err != nil {
			return invalid("researcher %s: %v", r.Principal, err)
		}
		if err := checkHeight("researcher", r.Principal.String(), r.Height); err != nil {
			return err
		}
	}

	submissions := make(map[string]struct{}, len(snapshot.Submissions))
	for _, sub := range snapshot.Submissions {
		if _, ok := submissions[sub.GenomeID]; ok {
			return invalid("genome id %q listed twice", sub.GenomeID)
		}
		submissions[sub.GenomeID] = struct{}{}

		if err := validateGenomeID(sub.GenomeID); err != nil {
			return invalid("submission %q: %v", sub.GenomeID, err)
		}
		digest, err := parseDataHash(sub.DataHash)
		if err != nil {
			return invalid("submission %q: %v", sub.GenomeID, err)
		}
		if err := validateGenomeType(sub.GenomeType); err != nil {
			return invalid("submission %q: %v", sub.GenomeID, err)
		}
		dataCID, err := DataCID(digest)
		if err != nil {
			return invalid("submission %q: %v", sub.GenomeID, err)
		}
		if sub.DataCID != dataCID {
			return invalid("submission %q: data cid %s does not match data hash", sub.GenomeID, sub.DataCID)
		}
		if _, ok := researchers[sub.Submitter]; !ok {
			return invalid("submission %q: submitter %s is not a registered researcher", sub.GenomeID, sub.Submitter)
		}
		if err := checkHeight("submission", sub.GenomeID, sub.Height); err != nil {
			return err
		}
	}

	validators := make(map[interfaces.Principal]struct{}, len(snapshot.Validators))
	for _, v := range snapshot.Validators {
		if _, ok := validators[v.Principal]; ok {
			return invalid("validator %s listed twice", v.Principal)
		}
		validators[v.Principal] = struct{}{}
		if err := checkHeight("validator", v.Principal.String(), v.Height); err != nil {
			return err
		}
	}

	if uint64(len(snapshot.Events)) != snapshot.Height {
		return invalid("%d events for height %d", len(snapshot.Events), snapshot.Height)
	}
	for i, e := range snapshot.Events {
		if e.Height != uint64(i+1) {
			return invalid("event %d has height %d", i, e.Height)
		}
	}
	return nil
}
