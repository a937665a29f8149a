package statedb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/vaccine-ledger/interfaces"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	keyOwner  = []byte("meta:owner")
	keyHeight = []byte("meta:height")

	prefixResearcher = []byte("researcher:")
	prefixSubmission = []byte("submission:")
	prefixValidator  = []byte("validator:")
	prefixEvent      = []byte("event:")
)

// LevelStore persists the ledger state in a LevelDB database.
// Records are JSON values under prefixed keys; events are keyed by big-endian
// height so that iteration follows the journal order.
type LevelStore struct {
	db  *leveldb.DB
	log *slog.Logger

	// mu serializes commits so the cached counts stay exact.
	mu     sync.Mutex
	counts interfaces.StateCounts
}

// NewLevelStore opens (or creates) the database at path.
func NewLevelStore(path string, log *slog.Logger) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database at %s: %w", path, err)
	}

	s := &LevelStore{db: db, log: log}
	for prefix, count := range map[string]*int{
		string(prefixResearcher): &s.counts.Researchers,
		string(prefixSubmission): &s.counts.Submissions,
		string(prefixValidator):  &s.counts.Validators,
	} {
		n, err := s.countPrefix([]byte(prefix))
		if err != nil {
			db.Close()
			return nil, err
		}
		*count = n
	}

	log.Debug("Opened state database",
		"path", path,
		"researchers", s.counts.Researchers,
		"submissions", s.counts.Submissions,
		"validators", s.counts.Validators)

	return s, nil
}

func (s *LevelStore) countPrefix(prefix []byte) (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	n := 0
	for iter.Next() {
		n++
	}
	return n, iter.Error()
}

func (s *LevelStore) Owner() (interfaces.Principal, error) {
	raw, err := s.get(keyOwner)
	if err != nil {
		return interfaces.Principal{}, err
	}
	return decodeOwner(raw)
}

func decodeOwner(raw []byte) (interfaces.Principal, error) {
	if len(raw) != len(interfaces.Principal{}) {
		return interfaces.Principal{}, fmt.Errorf("corrupt owner record: %d bytes", len(raw))
	}
	return interfaces.Principal(raw), nil
}

func (s *LevelStore) Height() (uint64, error) {
	raw, err := s.get(keyHeight)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *LevelStore) Researcher(principal interfaces.Principal) (*interfaces.Researcher, error) {
	var r interfaces.Researcher
	if err := s.getJSON(researcherKey(principal), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *LevelStore) Submission(genomeID string) (*interfaces.GenomeSubmission, error) {
	var sub interfaces.GenomeSubmission
	if err := s.getJSON(submissionKey(genomeID), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *LevelStore) Validator(principal interfaces.Principal) (*interfaces.Validator, error) {
	var v interfaces.Validator
	if err := s.getJSON(validatorKey(principal), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validators iterates the validator prefix; raw principal keys sort by principal.
func (s *LevelStore) Validators() ([]interfaces.Validator, error) {
	return collect[interfaces.Validator](s.db, util.BytesPrefix(prefixValidator), 0)
}

func (s *LevelStore) Events(from uint64, limit int) ([]interfaces.Event, error) {
	r := &util.Range{
		Start: eventKey(from),
		Limit: util.BytesPrefix(prefixEvent).Limit,
	}
	return collect[interfaces.Event](s.db, r, limit)
}

func (s *LevelStore) Counts() (interfaces.StateCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts, nil
}

// Dump reads every record from one LevelDB snapshot.
func (s *LevelStore) Dump() (*interfaces.Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database snapshot: %w", err)
	}
	defer snap.Release()

	raw, err := snap.Get(keyOwner, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	owner, err := decodeOwner(raw)
	if err != nil {
		return nil, err
	}

	snapshot := &interfaces.Snapshot{
		Version: interfaces.SnapshotVersion,
		Owner:   owner,
	}
	if h, err := snap.Get(keyHeight, nil); err == nil {
		snapshot.Height = binary.BigEndian.Uint64(h)
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return nil, err
	}

	if snapshot.Researchers, err = collect[interfaces.Researcher](snap, util.BytesPrefix(prefixResearcher), 0); err != nil {
		return nil, err
	}
	if snapshot.Submissions, err = collect[interfaces.GenomeSubmission](snap, util.BytesPrefix(prefixSubmission), 0); err != nil {
		return nil, err
	}
	if snapshot.Validators, err = collect[interfaces.Validator](snap, util.BytesPrefix(prefixValidator), 0); err != nil {
		return nil, err
	}
	events, err := collect[interfaces.Event](snap, util.BytesPrefix(prefixEvent), 0)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		snapshot.Events = events
	}

	sortSnapshot(snapshot)
	return snapshot, nil
}

// Commit writes the changeset as a single batch. Records are upserts; the
// ledger enforces key uniqueness before committing.
func (s *LevelStore) Commit(cs *interfaces.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	counts := s.counts

	if cs.Owner != nil {
		batch.Put(keyOwner, cs.Owner.Bytes())
	}
	height := make([]byte, 8)
	binary.BigEndian.PutUint64(height, cs.Height)
	batch.Put(keyHeight, height)

	for _, r := range cs.Researchers {
		if err := s.putJSON(batch, researcherKey(r.Principal), r, &counts.Researchers); err != nil {
			return err
		}
	}
	for _, sub := range cs.Submissions {
		if err := s.putJSON(batch, submissionKey(sub.GenomeID), sub, &counts.Submissions); err != nil {
			return err
		}
	}
	for _, v := range cs.Validators {
		if err := s.putJSON(batch, validatorKey(v.Principal), v, &counts.Validators); err != nil {
			return err
		}
	}
	for _, e := range cs.Events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		batch.Put(append(eventKey(e.Height), e.ID[:]...), value)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	s.counts = counts
	return nil
}

// putJSON stages value under key and bumps count when the key is new.
// A key repeated inside one changeset is counted once.
func (s *LevelStore) putJSON(batch *leveldb.Batch, key []byte, value any, count *int) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	exists, err := s.db.Has(key, nil)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if !exists && !batchHasKey(batch, key) {
		*count++
	}
	batch.Put(key, data)
	return nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

func (s *LevelStore) get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, nil
}

func (s *LevelStore) getJSON(key []byte, out any) error {
	value, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("corrupt record under %q: %w", key, err)
	}
	return nil
}

type batchKeyFinder struct {
	key   []byte
	found bool
}

func (f *batchKeyFinder) Put(key, value []byte) {
	if string(key) == string(f.key) {
		f.found = true
	}
}

func (f *batchKeyFinder) Delete(key []byte) {}

func batchHasKey(batch *leveldb.Batch, key []byte) bool {
	f := &batchKeyFinder{key: key}
	if err := batch.Replay(f); err != nil {
		return false
	}
	return f.found
}

// reader is the read surface shared by *leveldb.DB and *leveldb.Snapshot.
type reader interface {
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

func collect[T any](db reader, r *util.Range, limit int) ([]T, error) {
	iter := db.NewIterator(r, nil)
	defer iter.Release()

	out := make([]T, 0)
	for iter.Next() {
		var item T
		if err := json.Unmarshal(iter.Value(), &item); err != nil {
			return nil, fmt.Errorf("corrupt record under %q: %w", iter.Key(), err)
		}
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

func researcherKey(p interfaces.Principal) []byte {
	return append(append([]byte{}, prefixResearcher...), p[:]...)
}

func submissionKey(genomeID string) []byte {
	return append(append([]byte{}, prefixSubmission...), genomeID...)
}

func validatorKey(p interfaces.Principal) []byte {
	return append(append([]byte{}, prefixValidator...), p[:]...)
}

func eventKey(height uint64) []byte {
	key := make([]byte, len(prefixEvent)+8)
	copy(key, prefixEvent)
	binary.BigEndian.PutUint64(key[len(prefixEvent):], height)
	return key
}

var _ interfaces.StateStore = (*LevelStore)(nil)
