package ledger

import (
	"context"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockLedger mocks the Ledger interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RegisterResearcher(ctx context.Context, caller interfaces.Principal, institution string, token interfaces.Principal) (*interfaces.Researcher, error) {
	args := m.Called(ctx, caller, institution, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Researcher), args.Error(1)
}

func (m *MockLedger) SubmitGenomeData(ctx context.Context, caller interfaces.Principal, genomeID, dataHash, genomeType string, token interfaces.Principal) (*interfaces.GenomeSubmission, error) {
	args := m.Called(ctx, caller, genomeID, dataHash, genomeType, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.GenomeSubmission), args.Error(1)
}

func (m *MockLedger) AddValidator(ctx context.Context, caller, validator interfaces.Principal, weight uint64) (*interfaces.Validator, error) {
	args := m.Called(ctx, caller, validator, weight)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Validator), args.Error(1)
}

func (m *MockLedger) Owner() interfaces.Principal {
	args := m.Called()
	return args.Get(0).(interfaces.Principal)
}

func (m *MockLedger) Researcher(ctx context.Context, principal interfaces.Principal) (*interfaces.Researcher, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Researcher), args.Error(1)
}

func (m *MockLedger) Submission(ctx context.Context, genomeID string) (*interfaces.GenomeSubmission, error) {
	args := m.Called(ctx, genomeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.GenomeSubmission), args.Error(1)
}

func (m *MockLedger) Validator(ctx context.Context, principal interfaces.Principal) (*interfaces.Validator, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Validator), args.Error(1)
}

func (m *MockLedger) Validators(ctx context.Context) ([]interfaces.Validator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.Validator), args.Error(1)
}

func (m *MockLedger) Events(ctx context.Context, from uint64, limit int) ([]interfaces.Event, error) {
	args := m.Called(ctx, from, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.Event), args.Error(1)
}

func (m *MockLedger) Status(ctx context.Context) (*interfaces.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Status), args.Error(1)
}

func (m *MockLedger) ExportSnapshot(ctx context.Context, caller interfaces.Principal) (*interfaces.SnapshotReceipt, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.SnapshotReceipt), args.Error(1)
}

var _ interfaces.Ledger = (*MockLedger)(nil)
