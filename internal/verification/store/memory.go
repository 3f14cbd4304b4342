package store

import (
	"context"
	"sort"
	"sync"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

// InMemoryStore keeps verification records in a map. Used in tests and in
// ephemeral deployments without a database.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[id.VerificationID]models.Record
	// byDocument preserves insertion order per document.
	byDocument map[id.DocumentID][]id.VerificationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:    make(map[id.VerificationID]models.Record),
		byDocument: make(map[id.DocumentID][]id.VerificationID),
	}
}

func (s *InMemoryStore) CreateAttempt(_ context.Context, record models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existingID := range s.byDocument[record.DocumentID] {
		if s.records[existingID].State.InFlight() {
			return sentinel.ErrConflict
		}
	}

	s.records[record.ID] = record.Clone()
	s.byDocument[record.DocumentID] = append(s.byDocument[record.DocumentID], record.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, verificationID id.VerificationID) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[verificationID]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) LatestByDocument(_ context.Context, documentID id.DocumentID) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDocument[documentID]
	if len(ids) == 0 {
		return models.Record{}, sentinel.ErrNotFound
	}
	// byDocument preserves creation order, so the last entry is the
	// current record.
	return s.records[ids[len(ids)-1]].Clone(), nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentID id.DocumentID) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byDocument[documentID]
	records := make([]models.Record, 0, len(ids))
	for _, recordID := range ids {
		records = append(records, s.records[recordID].Clone())
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}

func (s *InMemoryStore) Transition(_ context.Context, record models.Record, from models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[record.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.State != from {
		return sentinel.ErrInvalidState
	}
	// DECIDED -> UNDER_REVIEW re-enters the in-flight set, so the
	// single-in-flight rule has to hold here too, not just at creation.
	if record.State.InFlight() {
		for _, otherID := range s.byDocument[record.DocumentID] {
			if otherID != record.ID && s.records[otherID].State.InFlight() {
				return sentinel.ErrConflict
			}
		}
	}
	s.records[record.ID] = record.Clone()
	return nil
}

// MemoryTxRunner serializes multi-store operations with a single mutex.
// It provides mutual exclusion, not rollback: a callback that fails after
// its first write leaves the earlier writes applied. Callbacks must
// therefore do all validation before their first write, which the
// guarded Transition call satisfies. Real atomicity needs SQLTxRunner;
// the memory stores are test and dev infrastructure.
type MemoryTxRunner struct {
	mu sync.Mutex
}

func NewMemoryTxRunner() *MemoryTxRunner {
	return &MemoryTxRunner{}
}

func (r *MemoryTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
