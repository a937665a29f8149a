package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// AddValidator sets the weight of validator in the directory. Only the
// deployment owner may call it (1001). Re-adding a validator overwrites its weight.
func (n *Network) AddValidator(ctx context.Context, caller, validator interfaces.Principal, weight uint64) (_ *interfaces.Validator, err error) {
	_, span := n.startSpan(ctx, OpAddValidator, caller)
	defer func(start time.Time) { n.finish(span, OpAddValidator, start, err) }(time.Now())

	if caller != n.cfg.Owner {
		return nil, fmt.Errorf("%w: %s is not the network owner", interfaces.ErrUnauthorized, caller)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	height, now := n.next()
	record := interfaces.Validator{
		Principal: validator,
		Weight:    weight,
		Height:    height,
		UpdatedAt: now,
	}

	cs := &interfaces.Changeset{Validators: []interfaces.Validator{record}}
	if err := n.commit(cs, interfaces.EventValidatorUpserted, caller, validator.String(), now); err != nil {
		return nil, err
	}

	n.log.Info("Validator updated",
		"validator", validator,
		"weight", weight,
		"height", height)

	return &record, nil
}
