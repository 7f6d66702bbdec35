package memdb

import (
	"context"
	"slices"
	"sync"

	"github.com/hedisam/txledger/internal/ledger"
)

// RecordStore keeps the ledger's records in memory, in append order.
type RecordStore struct {
	records      []*ledger.Record
	bySubmission map[string]uint64
	mu           sync.RWMutex
}

func NewRecordStore(opts ...Option) *RecordStore {
	cfg := &config{capacity: DefaultCapacity}
	for opt := range slices.Values(opts) {
		opt(cfg)
	}

	return &RecordStore{
		records:      make([]*ledger.Record, 0, cfg.capacity),
		bySubmission: make(map[string]uint64, cfg.capacity),
	}
}

// Append assigns the next index to rec and stores a copy of it.
func (s *RecordStore) Append(_ context.Context, rec *ledger.Record) (*ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec.Clone()
	stored.Index = uint64(len(s.records))
	s.records = append(s.records, stored)
	if stored.SubmissionID != "" {
		s.bySubmission[stored.SubmissionID] = stored.Index
	}

	return stored.Clone(), nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.records)), nil
}

// All returns a snapshot of every stored record.
func (s *RecordStore) All(_ context.Context) ([]*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ledger.CloneAll(s.records), nil
}

// Get returns the record at index or ledger.ErrNotFound.
func (s *RecordStore) Get(_ context.Context, index uint64) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index >= uint64(len(s.records)) {
		return nil, ledger.ErrNotFound
	}
	return s.records[index].Clone(), nil
}

// FindBySubmission returns the record appended for submissionID or ledger.ErrNotFound.
func (s *RecordStore) FindBySubmission(_ context.Context, submissionID string) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.bySubmission[submissionID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return s.records[idx].Clone(), nil
}
