package oracle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenChain answers balanceOf calls for the tokens it knows.
type fakeTokenChain struct {
	abi      abi.ABI
	balances map[common.Address]map[common.Address]*big.Int
	calls    int
	err      error
}

func newFakeTokenChain(t *testing.T) *fakeTokenChain {
	parsed, err := abi.JSON(bytes.NewReader([]byte(erc20BalanceABI)))
	require.NoError(t, err)
	return &fakeTokenChain{abi: parsed, balances: make(map[common.Address]map[common.Address]*big.Int)}
}

func (f *fakeTokenChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	if _, ok := f.balances[contract]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (f *fakeTokenChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	holders, ok := f.balances[*call.To]
	if !ok {
		return nil, nil
	}

	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	balance, ok := holders[args[0].(common.Address)]
	if !ok {
		balance = new(big.Int)
	}
	return method.Outputs.Pack(balance)
}

func TestERC20Oracle_BalanceOf(t *testing.T) {
	chain := newFakeTokenChain(t)
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holder := common.HexToAddress("0x0000000000000000000000000000000000000001")
	chain.balances[token] = map[common.Address]*big.Int{holder: big.NewInt(1500)}

	o, err := NewERC20Oracle(chain, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	balance, err := o.BalanceOf(context.Background(), interfaces.NewPrincipalFromAddress(token), interfaces.NewPrincipalFromAddress(holder))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance.Int64())

	other := common.HexToAddress("0x0000000000000000000000000000000000000002")
	balance, err = o.BalanceOf(context.Background(), interfaces.NewPrincipalFromAddress(token), interfaces.NewPrincipalFromAddress(other))
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())
	assert.Equal(t, 2, chain.calls)
}

func TestERC20Oracle_InvalidToken(t *testing.T) {
	chain := newFakeTokenChain(t)
	o, err := NewERC20Oracle(chain, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = o.BalanceOf(context.Background(), interfaces.Principal{0xbb}, interfaces.Principal{0x01})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestERC20Oracle_RPCFailure(t *testing.T) {
	chain := newFakeTokenChain(t)
	rpcErr := errors.New("connection refused")
	chain.err = rpcErr
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	chain.balances[token] = map[common.Address]*big.Int{}

	o, err := NewERC20Oracle(chain, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = o.BalanceOf(context.Background(), interfaces.NewPrincipalFromAddress(token), interfaces.Principal{0x01})
	assert.ErrorIs(t, err, rpcErr)
}
