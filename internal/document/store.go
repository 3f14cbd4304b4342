package document

import (
	"context"

	id "veridoc/pkg/domain"
)

// Store is the document adapter contract. Implementations return
// sentinel.ErrNotFound when the document does not exist.
//
// Fetch returns metadata together with the raw bytes; the pipeline never
// writes bytes back. SetActiveVerification is the single metadata write the
// pipeline performs, and it participates in the ambient transaction so the
// link only moves when the new verification record commits.
type Store interface {
	Save(ctx context.Context, doc Document, content []byte) error
	Fetch(ctx context.Context, documentID id.DocumentID) (Document, []byte, error)
	Get(ctx context.Context, documentID id.DocumentID) (Document, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]Document, error)
	SetActiveVerification(ctx context.Context, documentID id.DocumentID, verificationID id.VerificationID) error
}

// HashContent returns the canonical content hash for document bytes.
func HashContent(content []byte) string {
	return hashBytes(content)
}
