package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitGenomeData records a genome-data submission from a registered researcher.
//
// Structural checks on genome id, data hash and genome type (1002) run before
// the caller's registration is consulted (1001), so a malformed submission is
// rejected the same way for every caller. A genome id is accepted once (1006).
// The token is recorded with the submission but does not gate it.
func (n *Network) SubmitGenomeData(ctx context.Context, caller interfaces.Principal, genomeID, dataHash, genomeType string, token interfaces.Principal) (_ *interfaces.GenomeSubmission, err error) {
	_, span := n.startSpan(ctx, OpSubmitGenomeData, caller)
	span.SetAttributes(attribute.String("ledger.genome_id", genomeID))
	defer func(start time.Time) { n.finish(span, OpSubmitGenomeData, start, err) }(time.Now())

	if err := validateGenomeID(genomeID); err != nil {
		return nil, err
	}
	digest, err := parseDataHash(dataHash)
	if err != nil {
		return nil, err
	}
	if err := validateGenomeType(genomeType); err != nil {
		return nil, err
	}
	dataCID, err := DataCID(digest)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := n.store.Researcher(caller); err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s is not a registered researcher", interfaces.ErrUnauthorized, caller)
		}
		return nil, fmt.Errorf("failed to read researcher %s: %w", caller, err)
	}

	_, err = n.store.Submission(genomeID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: genome id %q already submitted", interfaces.ErrDuplicateSubmission, genomeID)
	case !errors.Is(err, interfaces.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to read submission %q: %w", genomeID, err)
	}

	height, now := n.next()
	submission := interfaces.GenomeSubmission{
		GenomeID:    genomeID,
		DataHash:    dataHash,
		DataCID:     dataCID,
		GenomeType:  genomeType,
		Submitter:   caller,
		Token:       token,
		Height:      height,
		SubmittedAt: now,
	}

	cs := &interfaces.Changeset{Submissions: []interfaces.GenomeSubmission{submission}}
	if err := n.commit(cs, interfaces.EventGenomeSubmitted, caller, genomeID, now); err != nil {
		return nil, err
	}

	n.log.Info("Genome data submitted",
		"genomeID", genomeID,
		"genomeType", genomeType,
		"submitter", caller,
		"dataCID", dataCID,
		"height", height)

	return &submission, nil
}
