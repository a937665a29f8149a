package statedb

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ruteri/vaccine-ledger/interfaces"
)

// MemoryStore keeps the ledger state in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	owner       *interfaces.Principal
	height      uint64
	researchers map[interfaces.Principal]interfaces.Researcher
	submissions map[string]interfaces.GenomeSubmission
	validators  map[interfaces.Principal]interfaces.Validator
	events      []interfaces.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		researchers: make(map[interfaces.Principal]interfaces.Researcher),
		submissions: make(map[string]interfaces.GenomeSubmission),
		validators:  make(map[interfaces.Principal]interfaces.Validator),
	}
}

func (s *MemoryStore) Owner() (interfaces.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner == nil {
		return interfaces.Principal{}, interfaces.ErrRecordNotFound
	}
	return *s.owner, nil
}

func (s *MemoryStore) Height() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

func (s *MemoryStore) Researcher(principal interfaces.Principal) (*interfaces.Researcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.researchers[principal]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Submission(genomeID string) (*interfaces.GenomeSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[genomeID]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) Validator(principal interfaces.Principal) (*interfaces.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.validators[principal]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return &v, nil
}

func (s *MemoryStore) Validators() ([]interfaces.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]interfaces.Validator, 0, len(s.validators))
	for _, v := range s.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Principal[:], out[j].Principal[:]) < 0
	})
	return out, nil
}

func (s *MemoryStore) Events(from uint64, limit int) ([]interfaces.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := sort.Search(len(s.events), func(i int) bool { return s.events[i].Height >= from })
	end := len(s.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]interfaces.Event, end-start)
	copy(out, s.events[start:end])
	return out, nil
}

func (s *MemoryStore) Counts() (interfaces.StateCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return interfaces.StateCounts{
		Researchers: len(s.researchers),
		Submissions: len(s.submissions),
		Validators:  len(s.validators),
	}, nil
}

func (s *MemoryStore) Dump() (*interfaces.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner == nil {
		return nil, interfaces.ErrRecordNotFound
	}

	snapshot := &interfaces.Snapshot{
		Version:     interfaces.SnapshotVersion,
		Owner:       *s.owner,
		Height:      s.height,
		Researchers: make([]interfaces.Researcher, 0, len(s.researchers)),
		Submissions: make([]interfaces.GenomeSubmission, 0, len(s.submissions)),
		Validators:  make([]interfaces.Validator, 0, len(s.validators)),
		Events:      append([]interfaces.Event(nil), s.events...),
	}
	for _, r := range s.researchers {
		snapshot.Researchers = append(snapshot.Researchers, r)
	}
	for _, sub := range s.submissions {
		snapshot.Submissions = append(snapshot.Submissions, sub)
	}
	for _, v := range s.validators {
		snapshot.Validators = append(snapshot.Validators, v)
	}
	sortSnapshot(snapshot)
	return snapshot, nil
}

// Commit applies the changeset under the write lock. Records are upserts and a
// key repeated within one changeset keeps its last value, as in LevelStore.
func (s *MemoryStore) Commit(cs *interfaces.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs.Owner != nil {
		owner := *cs.Owner
		s.owner = &owner
	}
	s.height = cs.Height
	for _, r := range cs.Researchers {
		s.researchers[r.Principal] = r
	}
	for _, sub := range cs.Submissions {
		s.submissions[sub.GenomeID] = sub
	}
	for _, v := range cs.Validators {
		s.validators[v.Principal] = v
	}
	if len(cs.Events) > 0 {
		s.events = append(s.events, cs.Events...)
		sort.SliceStable(s.events, func(i, j int) bool { return s.events[i].Height < s.events[j].Height })
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortSnapshot orders snapshot records by key so equal states dump to equal documents.
func sortSnapshot(snapshot *interfaces.Snapshot) {
	sort.Slice(snapshot.Researchers, func(i, j int) bool {
		return bytes.Compare(snapshot.Researchers[i].Principal[:], snapshot.Researchers[j].Principal[:]) < 0
	})
	sort.Slice(snapshot.Submissions, func(i, j int) bool {
		return snapshot.Submissions[i].GenomeID < snapshot.Submissions[j].GenomeID
	})
	sort.Slice(snapshot.Validators, func(i, j int) bool {
		return bytes.Compare(snapshot.Validators[i].Principal[:], snapshot.Validators[j].Principal[:]) < 0
	})
}

var _ interfaces.StateStore = (*MemoryStore)(nil)
