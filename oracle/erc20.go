// Package oracle provides the balance oracles consulted by researcher registration.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// erc20BalanceABI is the subset of the ERC-20 interface the oracle calls.
const erc20BalanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ErrInvalidToken is returned when the token principal holds no contract code.
var ErrInvalidToken = errors.New("token principal is not a contract")

// ERC20Oracle reads balances from ERC-20 token contracts through an Ethereum RPC endpoint.
type ERC20Oracle struct {
	caller bind.ContractCaller
	abi    abi.ABI
	tracer trace.Tracer
	log    *slog.Logger

	mu        sync.Mutex
	contracts map[interfaces.Principal]*bind.BoundContract
}

// NewERC20Oracle creates an oracle over caller, typically an *ethclient.Client.
func NewERC20Oracle(caller bind.ContractCaller, log *slog.Logger) (*ERC20Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	return &ERC20Oracle{
		caller:    caller,
		abi:       parsed,
		tracer:    otel.Tracer("github.com/ruteri/vaccine-ledger/oracle"),
		log:       log,
		contracts: make(map[interfaces.Principal]*bind.BoundContract),
	}, nil
}

// BalanceOf calls balanceOf(holder) on the token contract at the latest block.
func (o *ERC20Oracle) BalanceOf(ctx context.Context, token, holder interfaces.Principal) (*big.Int, error) {
	ctx, span := o.tracer.Start(ctx, "ERC20Oracle.BalanceOf", trace.WithAttributes(
		attribute.String("token", token.String()),
		attribute.String("holder", holder.String()),
	))
	defer span.End()

	var out []interface{}
	err := o.contractFor(token).Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", holder.Address())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, bind.ErrNoCode) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, token)
		}
		o.log.Warn("Balance query failed", "token", token, "holder", holder, "err", err)
		return nil, fmt.Errorf("balanceOf call on %s failed: %w", token, err)
	}

	balance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	o.log.Debug("Queried token balance", "token", token, "holder", holder, "balance", balance.String())
	return balance, nil
}

func (o *ERC20Oracle) contractFor(token interfaces.Principal) *bind.BoundContract {
	o.mu.Lock()
	defer o.mu.Unlock()

	contract, ok := o.contracts[token]
	if !ok {
		contract = bind.NewBoundContract(token.Address(), o.abi, o.caller, nil, nil)
		o.contracts[token] = contract
	}
	return contract
}
