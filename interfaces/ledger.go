package interfaces

import (
	"context"
	"math/big"
	"time"
)

// BalanceOracle answers read-only balance queries against a fungible token.
// A query against an invalid token aborts with an error; it never returns a partial value.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, token, holder Principal) (*big.Int, error)
}

// Ledger is the state machine behind the three mutating operations and their read-only getters.
// Mutating operations return a *LedgerError (see CodeOf) when a precondition fails.
type Ledger interface {
	RegisterResearcher(ctx context.Context, caller Principal, institution string, token Principal) (*Researcher, error)
	SubmitGenomeData(ctx context.Context, caller Principal, genomeID, dataHash, genomeType string, token Principal) (*GenomeSubmission, error)
	AddValidator(ctx context.Context, caller, validator Principal, weight uint64) (*Validator, error)

	Owner() Principal
	Researcher(ctx context.Context, principal Principal) (*Researcher, error)
	Submission(ctx context.Context, genomeID string) (*GenomeSubmission, error)
	Validator(ctx context.Context, principal Principal) (*Validator, error)
	Validators(ctx context.Context) ([]Validator, error)
	Events(ctx context.Context, from uint64, limit int) ([]Event, error)
	Status(ctx context.Context) (*Status, error)

	// ExportSnapshot writes the full state to the configured snapshot storage. Owner only.
	ExportSnapshot(ctx context.Context, caller Principal) (*SnapshotReceipt, error)
}

// Changeset is the unit of atomic commit to a StateStore.
// Records overwrite existing entries with the same key.
type Changeset struct {
	Height      uint64
	Owner       *Principal
	Researchers []Researcher
	Submissions []GenomeSubmission
	Validators  []Validator
	Events      []Event
}

// StateCounts holds the size of each record map.
type StateCounts struct {
	Researchers int
	Submissions int
	Validators  int
}

// StateStore persists the three record maps, the owner, the height and the event journal.
// Getters return ErrRecordNotFound for absent keys.
type StateStore interface {
	Owner() (Principal, error)
	Height() (uint64, error)
	Researcher(principal Principal) (*Researcher, error)
	Submission(genomeID string) (*GenomeSubmission, error)
	Validator(principal Principal) (*Validator, error)
	// Validators returns every validator ordered by principal.
	Validators() ([]Validator, error)
	// Events returns up to limit events with height >= from, in height order.
	Events(from uint64, limit int) ([]Event, error)
	Counts() (StateCounts, error)
	Dump() (*Snapshot, error)
	Commit(cs *Changeset) error
	Close() error
}

// SnapshotVersion is the current snapshot document version.
const SnapshotVersion = 1

// Snapshot is the portable JSON document holding the complete ledger state.
type Snapshot struct {
	Version     int                `json:"version"`
	Owner       Principal          `json:"owner"`
	Height      uint64             `json:"height"`
	CreatedAt   time.Time          `json:"created_at"`
	Researchers []Researcher       `json:"researchers"`
	Submissions []GenomeSubmission `json:"submissions"`
	Validators  []Validator        `json:"validators"`
	Events      []Event            `json:"events"`
}

// SnapshotReceipt describes a stored snapshot.
type SnapshotReceipt struct {
	ContentID ContentID `json:"content_id"`
	Location  string    `json:"location"`
	Height    uint64    `json:"height"`
	Encrypted bool      `json:"encrypted"`
}
