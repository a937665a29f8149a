package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/vaccine-ledger/interfaces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used for spans and metrics.
const (
	OpRegisterResearcher = "register-researcher"
	OpSubmitGenomeData   = "submit-genome-data"
	OpAddValidator       = "add-validator"
	OpExportSnapshot     = "export-snapshot"
)

var (
	// ErrSnapshotsDisabled is returned by ExportSnapshot when no snapshot storage is configured.
	ErrSnapshotsDisabled = errors.New("snapshot storage not configured")

	// ErrOracleUnavailable wraps balance oracle failures. The operation is aborted without a code.
	ErrOracleUnavailable = errors.New("balance oracle query failed")

	// ErrInvalidSnapshot is returned by RestoreSnapshot for snapshots whose
	// records break the ledger rules.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Config holds the deployment-time constants of a network.
type Config struct {
	// Owner is the only principal allowed to manage validators and export snapshots.
	Owner interfaces.Principal
	// AdmissionThreshold is the minimum token balance required to register.
	AdmissionThreshold *big.Int
}

// Observer receives operation outcomes and state sizes, usually to export them as metrics.
type Observer interface {
	ObserveOperation(operation, result string, duration time.Duration)
	ObserveState(counts interfaces.StateCounts, height uint64)
}

// Network is the ledger state machine. Every mutating operation validates its
// inputs, then reads and commits under a single mutex so that operations are
// totally ordered and a rejected operation leaves no trace in the store.
type Network struct {
	cfg    Config
	store  interfaces.StateStore
	oracle interfaces.BalanceOracle

	mu     sync.Mutex
	height uint64

	snapshots  interfaces.StorageBackend
	passphrase []byte

	now      func() time.Time
	observer Observer
	tracer   trace.Tracer
	log      *slog.Logger
}

// Option configures optional Network collaborators.
type Option func(*Network)

// WithClock replaces the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		n.now = now
	}
}

// WithObserver registers an observer for operation outcomes.
func WithObserver(o Observer) Option {
	return func(n *Network) {
		n.observer = o
	}
}

// WithTracer injects an OpenTelemetry tracer instead of the global one.
func WithTracer(t trace.Tracer) Option {
	return func(n *Network) {
		n.tracer = t
	}
}

// WithSnapshotStorage enables ExportSnapshot. A non-empty passphrase seals snapshots before storing them.
func WithSnapshotStorage(backend interfaces.StorageBackend, passphrase string) Option {
	return func(n *Network) {
		n.snapshots = backend
		if passphrase != "" {
			n.passphrase = []byte(passphrase)
		}
	}
}

// NewNetwork opens a ledger over store. The first open of an empty store records
// cfg.Owner as the deployment owner; later opens must present the same owner.
//
// Parameters:
//   - cfg: Deployment constants (owner and admission threshold)
//   - store: State store holding the record maps
//   - oracle: Balance oracle consulted by researcher registration
//   - log: Structured logger for operational insights
//
// Returns:
//   - Ready-to-use network
//   - ErrOwnerMismatch if the store was initialized for another owner
func NewNetwork(cfg Config, store interfaces.StateStore, oracle interfaces.BalanceOracle, log *slog.Logger, opts ...Option) (*Network, error) {
	if cfg.Owner.IsZero() {
		return nil, errors.New("network owner must be set")
	}
	if cfg.AdmissionThreshold == nil || cfg.AdmissionThreshold.Sign() < 0 {
		return nil, errors.New("admission threshold must be a non-negative amount")
	}

	n := &Network{
		cfg:    cfg,
		store:  store,
		oracle: oracle,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.tracer == nil {
		n.tracer = otel.Tracer("github.com/ruteri/vaccine-ledger/ledger")
	}

	owner, err := store.Owner()
	switch {
	case errors.Is(err, interfaces.ErrRecordNotFound):
		if err := store.Commit(&interfaces.Changeset{Owner: &cfg.Owner}); err != nil {
			return nil, fmt.Errorf("failed to record network owner: %w", err)
		}
		log.Info("Initialized ledger state", "owner", cfg.Owner)
	case err != nil:
		return nil, fmt.Errorf("failed to read network owner: %w", err)
	case owner != cfg.Owner:
		return nil, fmt.Errorf("%w: store owner %s, configured owner %s", interfaces.ErrOwnerMismatch, owner, cfg.Owner)
	}

	n.height, err = store.Height()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger height: %w", err)
	}
	n.observeState()

	return n, nil
}

// Owner returns the deployment owner.
func (n *Network) Owner() interfaces.Principal {
	return n.cfg.Owner
}

// AdmissionThreshold returns a copy of the registration balance threshold.
func (n *Network) AdmissionThreshold() *big.Int {
	return new(big.Int).Set(n.cfg.AdmissionThreshold)
}

// commit applies cs as the next ledger height and journals one event for it.
// Callers must hold n.mu and have checked every precondition.
func (n *Network) commit(cs *interfaces.Changeset, kind interfaces.EventKind, caller interfaces.Principal, subject string, at time.Time) error {
	cs.Height = n.height + 1
	cs.Events = append(cs.Events, interfaces.Event{
		Height:  cs.Height,
		ID:      uuid.New(),
		Kind:    kind,
		Caller:  caller,
		Subject: subject,
		Time:    at,
	})

	if err := n.store.Commit(cs); err != nil {
		return fmt.Errorf("failed to commit height %d: %w", cs.Height, err)
	}
	n.height = cs.Height
	n.observeState()
	return nil
}

// next returns the height and timestamp the next commit will carry. Callers must hold n.mu.
func (n *Network) next() (uint64, time.Time) {
	return n.height + 1, n.now().UTC()
}

func (n *Network) observeState() {
	if n.observer == nil {
		return
	}
	counts, err := n.store.Counts()
	if err != nil {
		n.log.Warn("Failed to count ledger records", "err", err)
		return
	}
	n.observer.ObserveState(counts, n.height)
}

func (n *Network) startSpan(ctx context.Context, operation string, caller interfaces.Principal) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("ledger.operation", operation),
		attribute.String("ledger.caller", caller.String()),
	))
}

// finish ends an operation span and reports the outcome. Rejections are
// expected outcomes and are not recorded as span errors.
func (n *Network) finish(span trace.Span, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		if code, ok := interfaces.CodeOf(err); ok {
			result = code.String()
		} else {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("ledger.result", result))
	span.End()

	if n.observer != nil {
		n.observer.ObserveOperation(operation, result, time.Since(start))
	}
}
