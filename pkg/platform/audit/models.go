// Package audit defines the immutable trail of verification state
// transitions. Entries are append-only: stores expose no update or delete
// surface, and appending a duplicate entry is an integrity violation.
package audit

import (
	"context"
	"time"

	id "veridoc/pkg/domain"
)

// SchemaVersion tags every entry at write time so historical rows remain
// interpretable as the entry shape evolves. Evolution is additive only.
const SchemaVersion = 1

// SystemActor marks transitions performed by the pipeline itself rather
// than an identified principal.
const SystemActor = "system"

// Entry records a single state transition of a verification attempt.
// From/To are the state machine's string forms so this package stays
// decoupled from the verification feature.
type Entry struct {
	ID             id.AuditEntryID
	VerificationID id.VerificationID
	FromState      string
	ToState        string
	// Actor is SystemActor or the acting principal's user ID.
	Actor      string
	ActorIP    string
	ActorAgent string
	Reason     string
	Schema     int
	Timestamp  time.Time
	// Seq is the committed position assigned by the store. Entries for a
	// record are totally ordered by (Timestamp, Seq).
	Seq int64
}

// Store is the append-only persistence contract.
//
// Append assigns and returns the committed sequence position. Re-appending
// an entry whose ID is already committed fails with sentinel.ErrImmutable:
// audit rows are never rewritten, not even idempotently.
//
// EntriesFor returns entries for one verification record in commit order.
// Re-reading yields the same sequence as long as nothing new was appended.
type Store interface {
	Append(ctx context.Context, entry Entry) (int64, error)
	EntriesFor(ctx context.Context, verificationID id.VerificationID) ([]Entry, error)
	// ListRecent returns the most recent entries across all records,
	// newest first. Compliance tooling uses it for the admin feed.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
