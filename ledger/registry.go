package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// RegisterResearcher admits caller as a researcher of institution once its
// balance of token reaches the admission threshold.
//
// Checks run in order: institution format (1002), existing registration (1005),
// token balance (1004). Oracle failures abort with an uncoded error.
func (n *Network) RegisterResearcher(ctx context.Context, caller interfaces.Principal, institution string, token interfaces.Principal) (_ *interfaces.Researcher, err error) {
	ctx, span := n.startSpan(ctx, OpRegisterResearcher, caller)
	defer func(start time.Time) { n.finish(span, OpRegisterResearcher, start, err) }(time.Now())

	if err := validateInstitution(institution); err != nil {
		return nil, err
	}

	if err := n.checkNotRegistered(caller); err != nil {
		return nil, err
	}

	balance, err := n.oracle.BalanceOf(ctx, token, caller)
	if err != nil {
		return nil, fmt.Errorf("%w: balance of %s on token %s: %w", ErrOracleUnavailable, caller, token, err)
	}
	if balance.Cmp(n.cfg.AdmissionThreshold) < 0 {
		n.log.Debug("Registration below admission threshold",
			"caller", caller,
			"token", token,
			"balance", balance.String(),
			"threshold", n.cfg.AdmissionThreshold.String())
		return nil, fmt.Errorf("%w: balance %s below admission threshold %s", interfaces.ErrInsufficientFunds, balance, n.cfg.AdmissionThreshold)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// The balance query ran unlocked; a concurrent registration may have landed meanwhile.
	if err := n.checkNotRegistered(caller); err != nil {
		return nil, err
	}

	height, now := n.next()
	researcher := interfaces.Researcher{
		Principal:   caller,
		Institution: institution,
		Token:       token,
		Height:      height,
		AdmittedAt:  now,
	}

	cs := &interfaces.Changeset{Researchers: []interfaces.Researcher{researcher}}
	if err := n.commit(cs, interfaces.EventResearcherRegistered, caller, caller.String(), now); err != nil {
		return nil, err
	}

	n.log.Info("Researcher registered",
		"principal", caller,
		"institution", institution,
		"height", height)

	return &researcher, nil
}

func (n *Network) checkNotRegistered(caller interfaces.Principal) error {
	_, err := n.store.Researcher(caller)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyRegistered, caller)
	case errors.Is(err, interfaces.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to read researcher %s: %w", caller, err)
	}
}
