// Package document is the store adapter for uploaded documents. The
// verification pipeline reads bytes and metadata through it and writes back
// only the active-verification link; raw bytes are never rewritten.
package document

import (
	"time"

	id "veridoc/pkg/domain"
)

// Document is the metadata the pipeline sees for one uploaded file.
type Document struct {
	ID         id.DocumentID
	OwnerID    id.UserID
	Title      string
	StorageRef string
	// ContentHash is the hex SHA-256 of the stored bytes. Identical hashes
	// guarantee identical extracted features.
	ContentHash string
	ContentType string
	SizeBytes   int64
	UploadedAt  time.Time
	// ActiveVerificationID links the attempt currently in flight or most
	// recently concluded. Nil when the document was never verified.
	ActiveVerificationID *id.VerificationID
}
