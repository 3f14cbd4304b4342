// Package store persists verification records.
package store

import (
	"context"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
)

// Store is the verification persistence contract.
//
// CreateAttempt inserts a new record. At most one in-flight record may
// exist per document; a concurrent or lingering in-flight record fails the
// insert with sentinel.ErrConflict. The check and the insert are a single
// atomic step in every implementation.
//
// Transition replaces the record's mutable fields, guarded by the expected
// current state. A record whose state moved underneath the caller fails
// with sentinel.ErrInvalidState; a missing record with sentinel.ErrNotFound.
type Store interface {
	CreateAttempt(ctx context.Context, record models.Record) error
	Get(ctx context.Context, verificationID id.VerificationID) (models.Record, error)
	// LatestByDocument returns the most recently created record for the
	// document. Attempt numbers restart at 1 on re-verification, so
	// creation order, not attempt number, defines the current record.
	LatestByDocument(ctx context.Context, documentID id.DocumentID) (models.Record, error)
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]models.Record, error)
	Transition(ctx context.Context, record models.Record, from models.State) error
}

// TxRunner runs fn atomically with respect to other verification writes.
// The SQL implementation opens a transaction and threads it through the
// context so the verification store, document store, and audit store all
// write on it; the memory implementation serializes with a mutex.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
