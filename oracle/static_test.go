package oracle

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	tokenHex  = "0x00000000000000000000000000000000000000aa"
	holderHex = "0x0000000000000000000000000000000000000001"
)

func TestLoadStaticOracle(t *testing.T) {
	o, err := LoadStaticOracle(strings.NewReader(`{"` + tokenHex + `": {"` + holderHex + `": "1000000000000000000000"}}`))
	require.NoError(t, err)

	token, _ := interfaces.NewPrincipalFromHex(tokenHex)
	holder, _ := interfaces.NewPrincipalFromHex(holderHex)

	balance, err := o.BalanceOf(context.Background(), token, holder)
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, balance.Cmp(expected))

	balance, err = o.BalanceOf(context.Background(), token, interfaces.Principal{0x02})
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())

	_, err = o.BalanceOf(context.Background(), interfaces.Principal{0x03}, holder)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestLoadStaticOracle_Invalid(t *testing.T) {
	_, err := LoadStaticOracle(strings.NewReader(`{"` + tokenHex + `": {"` + holderHex + `": "-5"}}`))
	assert.Error(t, err)

	_, err = LoadStaticOracle(strings.NewReader(`{"not-an-address": {}}`))
	assert.Error(t, err)
}

func TestStaticOracle_ReturnsCopies(t *testing.T) {
	o := NewStaticOracle()
	token, holder := interfaces.Principal{0xaa}, interfaces.Principal{0x01}
	o.SetBalance(token, holder, big.NewInt(10))

	balance, err := o.BalanceOf(context.Background(), token, holder)
	require.NoError(t, err)
	balance.SetInt64(0)

	again, err := o.BalanceOf(context.Background(), token, holder)
	require.NoError(t, err)
	assert.Equal(t, int64(10), again.Int64())
}

func TestAllowlistOracle(t *testing.T) {
	accepted, rejected, holder := interfaces.Principal{0xaa}, interfaces.Principal{0xbb}, interfaces.Principal{0x01}

	inner := new(MockBalanceOracle)
	inner.On("BalanceOf", mock.Anything, accepted, holder).Return(big.NewInt(7), nil).Once()

	o := NewAllowlistOracle(inner, []interfaces.Principal{accepted})

	balance, err := o.BalanceOf(context.Background(), accepted, holder)
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance.Int64())

	_, err = o.BalanceOf(context.Background(), rejected, holder)
	assert.True(t, errors.Is(err, ErrTokenNotAccepted))

	inner.AssertExpectations(t)
}
