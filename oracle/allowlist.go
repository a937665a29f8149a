package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// ErrTokenNotAccepted is returned for tokens outside the deployment's accepted set.
var ErrTokenNotAccepted = errors.New("token not accepted")

// AllowlistOracle forwards balance queries only for accepted tokens.
type AllowlistOracle struct {
	inner    interfaces.BalanceOracle
	accepted map[interfaces.Principal]struct{}
}

// NewAllowlistOracle restricts inner to the given tokens.
func NewAllowlistOracle(inner interfaces.BalanceOracle, tokens []interfaces.Principal) *AllowlistOracle {
	accepted := make(map[interfaces.Principal]struct{}, len(tokens))
	for _, token := range tokens {
		accepted[token] = struct{}{}
	}
	return &AllowlistOracle{inner: inner, accepted: accepted}
}

func (o *AllowlistOracle) BalanceOf(ctx context.Context, token, holder interfaces.Principal) (*big.Int, error) {
	if _, ok := o.accepted[token]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotAccepted, token)
	}
	return o.inner.BalanceOf(ctx, token, holder)
}
