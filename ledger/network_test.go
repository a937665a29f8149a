package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/ruteri/vaccine-ledger/oracle"
	"github.com/ruteri/vaccine-ledger/statedb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validHash = "a3f2b8c9d4e5f6071829304a5b6c7d8e9f0a1b2c3d4e5f60718293a4b5c6d7e8"

var (
	deployer = interfaces.Principal{0xde}
	wallet1  = interfaces.Principal{0x01}
	wallet2  = interfaces.Principal{0x02}
	token    = interfaces.Principal{0xaa}

	threshold = big.NewInt(1000)
	fixedTime = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
)

type testNetwork struct {
	*Network
	store  *statedb.MemoryStore
	oracle *oracle.StaticOracle
}

func newTestNetwork(t *testing.T, opts ...Option) *testNetwork {
	t.Helper()
	store := statedb.NewMemoryStore()
	balances := oracle.NewStaticOracle()
	balances.SetBalance(token, wallet1, big.NewInt(5000))
	balances.SetBalance(token, wallet2, big.NewInt(10))

	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	n, err := NewNetwork(Config{Owner: deployer, AdmissionThreshold: threshold}, store, balances, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	require.NoError(t, err)
	return &testNetwork{Network: n, store: store, oracle: balances}
}

func requireCode(t *testing.T, err error, code interfaces.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	got, ok := interfaces.CodeOf(err)
	require.True(t, ok, "expected ledger error, got %v", err)
	assert.Equal(t, code, got, err.Error())
}

func TestNewNetwork_Config(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewNetwork(Config{AdmissionThreshold: threshold}, statedb.NewMemoryStore(), oracle.NewStaticOracle(), log)
	assert.Error(t, err)

	_, err = NewNetwork(Config{Owner: deployer}, statedb.NewMemoryStore(), oracle.NewStaticOracle(), log)
	assert.Error(t, err)

	_, err = NewNetwork(Config{Owner: deployer, AdmissionThreshold: big.NewInt(-1)}, statedb.NewMemoryStore(), oracle.NewStaticOracle(), log)
	assert.Error(t, err)
}

func TestNewNetwork_OwnerIsFixedAtDeployment(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := statedb.NewMemoryStore()

	n, err := NewNetwork(Config{Owner: deployer, AdmissionThreshold: threshold}, store, oracle.NewStaticOracle(), log)
	require.NoError(t, err)
	assert.Equal(t, deployer, n.Owner())

	owner, err := store.Owner()
	require.NoError(t, err)
	assert.Equal(t, deployer, owner)

	_, err = NewNetwork(Config{Owner: deployer, AdmissionThreshold: threshold}, store, oracle.NewStaticOracle(), log)
	require.NoError(t, err)

	_, err = NewNetwork(Config{Owner: wallet1, AdmissionThreshold: threshold}, store, oracle.NewStaticOracle(), log)
	assert.ErrorIs(t, err, interfaces.ErrOwnerMismatch)
}

func TestRegisterResearcher(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	researcher, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)
	assert.Equal(t, wallet1, researcher.Principal)
	assert.Equal(t, "Harvard Medical School", researcher.Institution)
	assert.Equal(t, token, researcher.Token)
	assert.Equal(t, uint64(1), researcher.Height)
	assert.Equal(t, fixedTime, researcher.AdmittedAt)

	stored, err := n.Researcher(ctx, wallet1)
	require.NoError(t, err)
	assert.Equal(t, *researcher, *stored)
}

func TestRegisterResearcher_InsufficientFunds(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet2, "MIT", token)
	requireCode(t, err, interfaces.CodeInsufficientFunds)

	_, err = n.Researcher(ctx, wallet2)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	status, err := n.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.Height)
	assert.Equal(t, 0, status.Researchers)
}

func TestRegisterResearcher_ThresholdIsInclusive(t *testing.T) {
	n := newTestNetwork(t)
	n.oracle.SetBalance(token, wallet2, threshold)

	_, err := n.RegisterResearcher(context.Background(), wallet2, "Karolinska Institutet", token)
	require.NoError(t, err)

	n.oracle.SetBalance(token, interfaces.Principal{0x03}, new(big.Int).Sub(threshold, big.NewInt(1)))
	_, err = n.RegisterResearcher(context.Background(), interfaces.Principal{0x03}, "Karolinska Institutet", token)
	requireCode(t, err, interfaces.CodeInsufficientFunds)
}

func TestRegisterResearcher_AlreadyRegistered(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)

	_, err = n.RegisterResearcher(ctx, wallet1, "Oxford Vaccine Group", token)
	requireCode(t, err, interfaces.CodeAlreadyRegistered)
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)

	stored, err := n.Researcher(ctx, wallet1)
	require.NoError(t, err)
	assert.Equal(t, "Harvard Medical School", stored.Institution)

	// The registration check precedes the balance gate.
	n.oracle.SetBalance(token, wallet1, big.NewInt(0))
	_, err = n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	requireCode(t, err, interfaces.CodeAlreadyRegistered)
}

func TestRegisterResearcher_InvalidInstitution(t *testing.T) {
	n := newTestNetwork(t)

	for name, institution := range map[string]string{
		"empty":       "",
		"too long":    strings.Repeat("x", MaxInstitutionLength+1),
		"non-ascii":   "Universität Zürich",
		"control chr": "Harvard\nMedical",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := n.RegisterResearcher(context.Background(), wallet1, institution, token)
			requireCode(t, err, interfaces.CodeInvalidSubmission)
		})
	}

	_, err := n.RegisterResearcher(context.Background(), wallet1, strings.Repeat("x", MaxInstitutionLength), token)
	require.NoError(t, err)
}

func TestRegisterResearcher_OracleFailureAborts(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", interfaces.Principal{0xbb})
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrUnknownToken)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	_, coded := interfaces.CodeOf(err)
	assert.False(t, coded)

	_, err = n.Researcher(ctx, wallet1)
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}

func TestRegisterResearcher_RespectsContext(t *testing.T) {
	store := statedb.NewMemoryStore()
	balances := new(oracle.MockBalanceOracle)
	balances.On("BalanceOf", mock.Anything, token, wallet1).Return(nil, context.Canceled)

	n, err := NewNetwork(Config{Owner: deployer, AdmissionThreshold: threshold}, store, balances, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	assert.ErrorIs(t, err, context.Canceled)
	balances.AssertExpectations(t)
}

func TestSubmitGenomeData(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)

	submission, err := n.SubmitGenomeData(ctx, wallet1, "GENOME123456789012", validHash, "mRNA-vaccine-target", token)
	require.NoError(t, err)
	assert.Equal(t, "GENOME123456789012", submission.GenomeID)
	assert.Equal(t, validHash, submission.DataHash)
	assert.Equal(t, "mRNA-vaccine-target", submission.GenomeType)
	assert.Equal(t, wallet1, submission.Submitter)
	assert.Equal(t, token, submission.Token)
	assert.Equal(t, uint64(2), submission.Height)
	assert.True(t, strings.HasPrefix(submission.DataCID, "bafkrei"), submission.DataCID)

	stored, err := n.Submission(ctx, "GENOME123456789012")
	require.NoError(t, err)
	assert.Equal(t, *submission, *stored)
}

func TestSubmitGenomeData_Unregistered(t *testing.T) {
	n := newTestNetwork(t)

	_, err := n.SubmitGenomeData(context.Background(), wallet2, "GENOME123456789012", validHash, "mRNA-vaccine-target", token)
	requireCode(t, err, interfaces.CodeUnauthorized)

	_, err = n.Submission(context.Background(), "GENOME123456789012")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}

func TestSubmitGenomeData_ShortGenomeIDRegardlessOfRegistration(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.SubmitGenomeData(ctx, wallet1, "SHORT", validHash, "mRNA-vaccine-target", token)
	requireCode(t, err, interfaces.CodeInvalidSubmission)

	_, err = n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)

	_, err = n.SubmitGenomeData(ctx, wallet1, "SHORT", validHash, "mRNA-vaccine-target", token)
	requireCode(t, err, interfaces.CodeInvalidSubmission)

	counts, err := n.store.Counts()
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Submissions)
}

func TestSubmitGenomeData_InvalidFields(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()
	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)

	tests := []struct {
		name       string
		genomeID   string
		dataHash   string
		genomeType string
	}{
		{"genome id of 9 characters", "GENOME123", validHash, "mRNA"},
		{"genome id too long", strings.Repeat("G", MaxGenomeIDLength+1), validHash, "mRNA"},
		{"genome id non-ascii", "GENOME-ß-123456", validHash, "mRNA"},
		{"hash too short", "GENOME123456789012", validHash[:63], "mRNA"},
		{"hash too long", "GENOME123456789012", validHash + "0", "mRNA"},
		{"hash not hex", "GENOME123456789012", strings.Repeat("z", 64), "mRNA"},
		{"hash with 0x prefix", "GENOME123456789012", "0x" + validHash[:62], "mRNA"},
		{"empty genome type", "GENOME123456789012", validHash, ""},
		{"genome type too long", "GENOME123456789012", validHash, strings.Repeat("t", MaxGenomeTypeLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.SubmitGenomeData(ctx, wallet1, tt.genomeID, tt.dataHash, tt.genomeType, token)
			requireCode(t, err, interfaces.CodeInvalidSubmission)
		})
	}

	_, err = n.SubmitGenomeData(ctx, wallet1, "GENOME1234", strings.ToUpper(validHash), "mRNA", token)
	require.NoError(t, err, "ten characters and upper-case hex are accepted")
}

func TestSubmitGenomeData_Duplicate(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()
	n.oracle.SetBalance(token, wallet2, threshold)
	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)
	_, err = n.RegisterResearcher(ctx, wallet2, "Institut Pasteur", token)
	require.NoError(t, err)

	first, err := n.SubmitGenomeData(ctx, wallet1, "GENOME123456789012", validHash, "mRNA-vaccine-target", token)
	require.NoError(t, err)

	_, err = n.SubmitGenomeData(ctx, wallet2, "GENOME123456789012", strings.Repeat("0", 64), "spike-protein", token)
	requireCode(t, err, interfaces.CodeDuplicateSubmission)

	stored, err := n.Submission(ctx, "GENOME123456789012")
	require.NoError(t, err)
	assert.Equal(t, *first, *stored)
}

func TestAddValidator(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	validator, err := n.AddValidator(ctx, deployer, wallet2, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), validator.Weight)

	stored, err := n.Validator(ctx, wallet2)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), stored.Weight)

	// Re-adding overwrites the weight.
	_, err = n.AddValidator(ctx, deployer, wallet2, 25)
	require.NoError(t, err)
	stored, err = n.Validator(ctx, wallet2)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), stored.Weight)

	_, err = n.AddValidator(ctx, deployer, wallet1, 0)
	require.NoError(t, err)

	validators, err := n.Validators(ctx)
	require.NoError(t, err)
	require.Len(t, validators, 2)
	assert.Equal(t, wallet1, validators[0].Principal)
	assert.Equal(t, wallet2, validators[1].Principal)
}

func TestAddValidator_NonOwner(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.AddValidator(ctx, wallet1, wallet2, 10)
	requireCode(t, err, interfaces.CodeUnauthorized)

	validators, err := n.Validators(ctx)
	require.NoError(t, err)
	assert.Empty(t, validators)

	// A registered researcher is still not the owner.
	_, err = n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)
	_, err = n.AddValidator(ctx, wallet1, wallet2, 10)
	requireCode(t, err, interfaces.CodeUnauthorized)
}

func TestHeightAndEvents(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)
	_, err = n.RegisterResearcher(ctx, wallet2, "MIT", token)
	requireCode(t, err, interfaces.CodeInsufficientFunds)
	_, err = n.SubmitGenomeData(ctx, wallet1, "GENOME123456789012", validHash, "mRNA-vaccine-target", token)
	require.NoError(t, err)
	_, err = n.AddValidator(ctx, deployer, wallet2, 10)
	require.NoError(t, err)

	status, err := n.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", status.TotalWeight.String())
	status.TotalWeight = nil
	assert.Equal(t, &interfaces.Status{
		Owner:       deployer,
		Height:      3,
		Researchers: 1,
		Submissions: 1,
		Validators:  1,
	}, status)

	events, err := n.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, interfaces.EventResearcherRegistered, events[0].Kind)
	assert.Equal(t, interfaces.EventGenomeSubmitted, events[1].Kind)
	assert.Equal(t, "GENOME123456789012", events[1].Subject)
	assert.Equal(t, interfaces.EventValidatorUpserted, events[2].Kind)
	assert.Equal(t, deployer, events[2].Caller)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Height)
		assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	}

	events, err = n.Events(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestConcurrentSubmissionsOfOneGenomeID(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	researchers := make([]interfaces.Principal, 16)
	for i := range researchers {
		researchers[i] = interfaces.Principal{0x10, byte(i)}
		n.oracle.SetBalance(token, researchers[i], threshold)
		_, err := n.RegisterResearcher(ctx, researchers[i], "Consortium", token)
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, r := range researchers {
		wg.Add(1)
		go func(r interfaces.Principal) {
			defer wg.Done()
			_, err := n.SubmitGenomeData(ctx, r, "GENOME123456789012", validHash, "mRNA-vaccine-target", token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, interfaces.ErrDuplicateSubmission):
				conflicts++
			}
		}(r)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, len(researchers)-1, conflicts)

	status, err := n.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(researchers)+1), status.Height)
}

func TestConcurrentRegistrationOfOneCaller(t *testing.T) {
	n := newTestNetwork(t)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := n.RegisterResearcher(context.Background(), wallet1, "Harvard Medical School", token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, successes)
}

type recordingObserver struct {
	mu      sync.Mutex
	results map[string][]string
	height  uint64
	counts  interfaces.StateCounts
}

func (o *recordingObserver) ObserveOperation(operation, result string, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = make(map[string][]string)
	}
	o.results[operation] = append(o.results[operation], result)
}

func (o *recordingObserver) ObserveState(counts interfaces.StateCounts, height uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts = counts
	o.height = height
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	n := newTestNetwork(t, WithObserver(obs))
	ctx := context.Background()

	_, err := n.RegisterResearcher(ctx, wallet1, "Harvard Medical School", token)
	require.NoError(t, err)
	_, _ = n.RegisterResearcher(ctx, wallet2, "MIT", token)
	_, _ = n.RegisterResearcher(ctx, wallet1, "MIT", interfaces.Principal{0xbb})
	_, _ = n.AddValidator(ctx, wallet1, wallet2, 1)

	assert.Equal(t, []string{"ok", "INSUFFICIENT-FUNDS", "ALREADY-REGISTERED"}, obs.results[OpRegisterResearcher])
	assert.Equal(t, []string{"UNAUTHORIZED"}, obs.results[OpAddValidator])
	assert.Equal(t, uint64(1), obs.height)
	assert.Equal(t, 1, obs.counts.Researchers)
}

func TestDataCID(t *testing.T) {
	// sha2-256 of the empty input
	digest, err := parseDataHash("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	require.NoError(t, err)

	c, err := DataCID(digest)
	require.NoError(t, err)
	assert.Equal(t, "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku", c)

	_, err = DataCID(digest[:31])
	assert.Error(t, err)
}

func TestStatus_TotalWeightBeyondUint64(t *testing.T) {
	n := newTestNetwork(t)
	ctx := context.Background()

	_, err := n.AddValidator(ctx, deployer, wallet1, math.MaxUint64)
	require.NoError(t, err)
	_, err = n.AddValidator(ctx, deployer, wallet2, 2)
	require.NoError(t, err)

	status, err := n.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551617", status.TotalWeight.String())
}
