package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "veridoc/pkg/domain"
	audit "veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/pgerr"
	"veridoc/pkg/platform/sentinel"
	txcontext "veridoc/pkg/platform/tx"
)

// Store persists the audit trail in PostgreSQL. The table carries a
// BIGSERIAL sequence so commit order survives restarts, and the schema has
// no UPDATE or DELETE path: the only statement this store issues against
// audit_entries is INSERT.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the ambient transaction when one is in flight so a state
// transition and its audit entry commit as a single unit.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an entry and returns its committed sequence position.
// A duplicate entry ID surfaces as sentinel.ErrImmutable.
func (s *Store) Append(ctx context.Context, entry audit.Entry) (int64, error) {
	query := `
		INSERT INTO audit_entries (
			id, verification_id, from_state, to_state,
			actor, actor_ip, actor_agent, reason, schema_version, committed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	var seq int64
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.VerificationID),
		entry.FromState,
		entry.ToState,
		entry.Actor,
		entry.ActorIP,
		entry.ActorAgent,
		entry.Reason,
		entry.Schema,
		entry.Timestamp,
	).Scan(&seq)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return 0, sentinel.ErrImmutable
		}
		return 0, fmt.Errorf("insert audit entry: %w", err)
	}
	return seq, nil
}

// EntriesFor returns entries for one verification record in commit order.
func (s *Store) EntriesFor(ctx context.Context, verificationID id.VerificationID) ([]audit.Entry, error) {
	query := `
		SELECT id, verification_id, from_state, to_state,
			   actor, actor_ip, actor_agent, reason, schema_version, committed_at, seq
		FROM audit_entries
		WHERE verification_id = $1
		ORDER BY committed_at ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(verificationID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListRecent returns the N most recent entries across all records.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, verification_id, from_state, to_state,
			   actor, actor_ip, actor_agent, reason, schema_version, committed_at, seq
		FROM audit_entries
		ORDER BY committed_at DESC, seq DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry

	for rows.Next() {
		var (
			entry          audit.Entry
			entryID        uuid.UUID
			verificationID uuid.UUID
		)
		err := rows.Scan(
			&entryID,
			&verificationID,
			&entry.FromState,
			&entry.ToState,
			&entry.Actor,
			&entry.ActorIP,
			&entry.ActorAgent,
			&entry.Reason,
			&entry.Schema,
			&entry.Timestamp,
			&entry.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.AuditEntryID(entryID)
		entry.VerificationID = id.VerificationID(verificationID)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
