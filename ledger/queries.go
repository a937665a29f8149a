package ledger

import (
	"context"
	"fmt"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// Event page sizes accepted by Events.
const (
	DefaultEventPage = 100
	MaxEventPage     = 1000
)

// Researcher returns the researcher record of principal, or ErrRecordNotFound.
func (n *Network) Researcher(ctx context.Context, principal interfaces.Principal) (*interfaces.Researcher, error) {
	return n.store.Researcher(principal)
}

// Submission returns the submission stored under genomeID, or ErrRecordNotFound.
func (n *Network) Submission(ctx context.Context, genomeID string) (*interfaces.GenomeSubmission, error) {
	return n.store.Submission(genomeID)
}

// Validator returns the validator record of principal, or ErrRecordNotFound.
func (n *Network) Validator(ctx context.Context, principal interfaces.Principal) (*interfaces.Validator, error) {
	return n.store.Validator(principal)
}

// Validators lists the directory ordered by principal.
func (n *Network) Validators(ctx context.Context) ([]interfaces.Validator, error) {
	return n.store.Validators()
}

// Events pages through the journal starting at height from. A limit outside
// 1..MaxEventPage falls back to DefaultEventPage or is capped at MaxEventPage.
func (n *Network) Events(ctx context.Context, from uint64, limit int) ([]interfaces.Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultEventPage
	case limit > MaxEventPage:
		limit = MaxEventPage
	}
	return n.store.Events(from, limit)
}

// Status reports the height and the size of every record map.
func (n *Network) Status(ctx context.Context) (*interfaces.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	counts, err := n.store.Counts()
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	validators, err := n.store.Validators()
	if err != nil {
		return nil, fmt.Errorf("failed to list validators: %w", err)
	}

	return &interfaces.Status{
		Owner:       n.cfg.Owner,
		Height:      n.height,
		Researchers: counts.Researchers,
		Submissions: counts.Submissions,
		Validators:  counts.Validators,
		TotalWeight: interfaces.TotalWeight(validators),
	}, nil
}
