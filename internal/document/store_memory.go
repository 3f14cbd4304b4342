package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

type storedDocument struct {
	doc     Document
	content []byte
}

// InMemoryStore keeps documents and their bytes in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]storedDocument
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[id.DocumentID]storedDocument)}
}

// Save stores a document and its bytes, stamping the content hash.
func (s *InMemoryStore) Save(_ context.Context, doc Document, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.ContentHash = hashBytes(content)
	doc.SizeBytes = int64(len(content))
	s.docs[doc.ID] = storedDocument{doc: doc, content: append([]byte{}, content...)}
	return nil
}

// Fetch returns the metadata and a copy of the raw bytes.
func (s *InMemoryStore) Fetch(_ context.Context, documentID id.DocumentID) (Document, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.docs[documentID]
	if !ok {
		return Document{}, nil, sentinel.ErrNotFound
	}
	return stored.doc, append([]byte{}, stored.content...), nil
}

// Get returns metadata only.
func (s *InMemoryStore) Get(_ context.Context, documentID id.DocumentID) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.docs[documentID]
	if !ok {
		return Document{}, sentinel.ErrNotFound
	}
	return stored.doc, nil
}

// ListByOwner returns the owner's documents ordered by upload time.
func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for _, stored := range s.docs {
		if stored.doc.OwnerID == ownerID {
			docs = append(docs, stored.doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })
	return docs, nil
}

// SetActiveVerification moves the active-verification link.
func (s *InMemoryStore) SetActiveVerification(_ context.Context, documentID id.DocumentID, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.doc.ActiveVerificationID = &verificationID
	s.docs[documentID] = stored
	return nil
}
