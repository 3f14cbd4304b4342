package memory

import (
	"context"
	"sort"
	"sync"

	id "veridoc/pkg/domain"
	audit "veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/sentinel"
)

// InMemoryStore keeps the audit trail in process memory. The zero update
// surface plus the duplicate-ID check give the same immutability contract
// as the PostgreSQL store.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextSeq int64
	byID    map[id.AuditEntryID]struct{}
	entries map[id.VerificationID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.AuditEntryID]struct{}),
		entries: make(map[id.VerificationID][]audit.Entry),
	}
}

// Append commits an entry and returns its sequence position.
// A duplicate entry ID is an immutability violation, never an overwrite.
func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[entry.ID]; exists {
		return 0, sentinel.ErrImmutable
	}

	s.nextSeq++
	entry.Seq = s.nextSeq
	s.byID[entry.ID] = struct{}{}
	s.entries[entry.VerificationID] = append(s.entries[entry.VerificationID], entry)
	return entry.Seq, nil
}

// EntriesFor returns a copy of the record's entries in commit order.
func (s *InMemoryStore) EntriesFor(_ context.Context, verificationID id.VerificationID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries[verificationID]...), nil
}

// ListRecent returns the most recent entries across all records, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Entry
	for _, recordEntries := range s.entries {
		all = append(all, recordEntries...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
