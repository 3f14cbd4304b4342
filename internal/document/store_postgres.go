package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
	txcontext "veridoc/pkg/platform/tx"
)

// PostgresStore persists documents in PostgreSQL with bytes inline. For
// larger deployments StorageRef would point at object storage; the adapter
// contract stays the same either way.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, doc Document, content []byte) error {
	query := `
		INSERT INTO documents (id, owner_id, title, storage_ref, content_hash, content_type, size_bytes, content, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.OwnerID),
		doc.Title,
		doc.StorageRef,
		hashBytes(content),
		doc.ContentType,
		int64(len(content)),
		content,
		doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Fetch(ctx context.Context, documentID id.DocumentID) (Document, []byte, error) {
	query := `
		SELECT id, owner_id, title, storage_ref, content_hash, content_type, size_bytes, content, uploaded_at, active_verification_id
		FROM documents
		WHERE id = $1
	`
	var (
		doc      Document
		docID    uuid.UUID
		ownerID  uuid.UUID
		content  []byte
		activeID *uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(documentID)).Scan(
		&docID, &ownerID, &doc.Title, &doc.StorageRef, &doc.ContentHash,
		&doc.ContentType, &doc.SizeBytes, &content, &doc.UploadedAt, &activeID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, nil, sentinel.ErrNotFound
		}
		return Document{}, nil, fmt.Errorf("fetch document: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.OwnerID = id.UserID(ownerID)
	if activeID != nil {
		verID := id.VerificationID(*activeID)
		doc.ActiveVerificationID = &verID
	}
	return doc, content, nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID id.DocumentID) (Document, error) {
	doc, _, err := s.Fetch(ctx, documentID)
	return doc, err
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]Document, error) {
	query := `
		SELECT id, owner_id, title, storage_ref, content_hash, content_type, size_bytes, uploaded_at, active_verification_id
		FROM documents
		WHERE owner_id = $1
		ORDER BY uploaded_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc      Document
			docID    uuid.UUID
			owner    uuid.UUID
			activeID *uuid.UUID
		)
		err := rows.Scan(&docID, &owner, &doc.Title, &doc.StorageRef, &doc.ContentHash,
			&doc.ContentType, &doc.SizeBytes, &doc.UploadedAt, &activeID)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.ID = id.DocumentID(docID)
		doc.OwnerID = id.UserID(owner)
		if activeID != nil {
			verID := id.VerificationID(*activeID)
			doc.ActiveVerificationID = &verID
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// SetActiveVerification moves the active-verification link. Runs on the
// ambient transaction when one is in flight so the link only moves together
// with the committed verification record.
func (s *PostgresStore) SetActiveVerification(ctx context.Context, documentID id.DocumentID, verificationID id.VerificationID) error {
	query := `UPDATE documents SET active_verification_id = $1 WHERE id = $2`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(verificationID), uuid.UUID(documentID))
	if err != nil {
		return fmt.Errorf("set active verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set active verification: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
