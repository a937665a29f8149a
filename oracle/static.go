package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// ErrUnknownToken is returned by StaticOracle for tokens it holds no balances for.
var ErrUnknownToken = errors.New("unknown token")

// StaticOracle serves balances from an in-memory table. It backs local
// deployments without an RPC endpoint and tests.
type StaticOracle struct {
	mu       sync.RWMutex
	balances map[interfaces.Principal]map[interfaces.Principal]*big.Int
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		balances: make(map[interfaces.Principal]map[interfaces.Principal]*big.Int),
	}
}

// LoadStaticOracle reads a JSON table of the form {"<token>": {"<holder>": "<amount>"}}.
// Amounts are decimal strings.
func LoadStaticOracle(r io.Reader) (*StaticOracle, error) {
	var table map[interfaces.Principal]map[interfaces.Principal]string
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode balance table: %w", err)
	}

	o := NewStaticOracle()
	for token, holders := range table {
		o.AddToken(token)
		for holder, amount := range holders {
			balance, ok := new(big.Int).SetString(amount, 10)
			if !ok || balance.Sign() < 0 {
				return nil, fmt.Errorf("invalid balance %q for %s on %s", amount, holder, token)
			}
			o.SetBalance(token, holder, balance)
		}
	}
	return o, nil
}

// AddToken makes token known; holders without a balance read as zero.
func (o *StaticOracle) AddToken(token interfaces.Principal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.balances[token]; !ok {
		o.balances[token] = make(map[interfaces.Principal]*big.Int)
	}
}

// SetBalance sets the balance of holder on token, adding the token if needed.
func (o *StaticOracle) SetBalance(token, holder interfaces.Principal, amount *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	holders, ok := o.balances[token]
	if !ok {
		holders = make(map[interfaces.Principal]*big.Int)
		o.balances[token] = holders
	}
	holders[holder] = new(big.Int).Set(amount)
}

func (o *StaticOracle) BalanceOf(ctx context.Context, token, holder interfaces.Principal) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	holders, ok := o.balances[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	balance, ok := holders[holder]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}
