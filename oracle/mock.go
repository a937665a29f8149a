package oracle

import (
	"context"
	"math/big"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockBalanceOracle mocks the BalanceOracle interface
type MockBalanceOracle struct {
	mock.Mock
}

// BalanceOf mocks the BalanceOf method
func (m *MockBalanceOracle) BalanceOf(ctx context.Context, token, holder interfaces.Principal) (*big.Int, error) {
	args := m.Called(ctx, token, holder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}
