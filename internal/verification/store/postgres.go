package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/pgerr"
	"veridoc/pkg/platform/sentinel"
	txcontext "veridoc/pkg/platform/tx"
)

// PostgresStore persists verification records. The single-in-flight rule
// is enforced by a partial unique index on document_id over in-flight
// states, so concurrent submissions race at the database and exactly one
// wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, document_id, requester_id, state, outcome, score, evidence, decision_reason, attempt, created_at, updated_at`

func (s *PostgresStore) CreateAttempt(ctx context.Context, record models.Record) error {
	evidence, err := marshalEvidence(record.Evidence)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO verifications (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.DocumentID),
		uuid.UUID(record.RequesterID),
		string(record.State),
		nullString(string(record.Outcome)),
		record.Score,
		evidence,
		record.DecisionReason,
		record.Attempt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, verificationID id.VerificationID) (models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM verifications WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(verificationID)))
}

func (s *PostgresStore) LatestByDocument(ctx context.Context, documentID id.DocumentID) (models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM verifications
		WHERE document_id = $1
		ORDER BY created_at DESC, attempt DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(documentID)))
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM verifications
		WHERE document_id = $1
		ORDER BY created_at ASC, attempt ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(documentID))
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verifications: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Transition(ctx context.Context, record models.Record, from models.State) error {
	evidence, err := marshalEvidence(record.Evidence)
	if err != nil {
		return err
	}
	query := `
		UPDATE verifications
		SET state = $1, outcome = $2, score = $3, evidence = $4, decision_reason = $5, updated_at = $6
		WHERE id = $7 AND state = $8
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(record.State),
		nullString(string(record.Outcome)),
		record.Score,
		evidence,
		record.DecisionReason,
		record.UpdatedAt,
		uuid.UUID(record.ID),
		string(from),
	)
	if err != nil {
		// Entering an in-flight state (DECIDED -> UNDER_REVIEW) trips the
		// partial unique index when a newer attempt is already in flight.
		if pgerr.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("transition verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition verification: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, record.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (models.Record, error) {
	record, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, err
	}
	return record, nil
}

func scanRecord(scan func(dest ...any) error) (models.Record, error) {
	var (
		record     models.Record
		recordID   uuid.UUID
		documentID uuid.UUID
		requester  uuid.UUID
		state      string
		outcome    sql.NullString
		evidence   []byte
	)
	err := scan(&recordID, &documentID, &requester, &state, &outcome, &record.Score,
		&evidence, &record.DecisionReason, &record.Attempt, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, err
		}
		return models.Record{}, fmt.Errorf("scan verification: %w", err)
	}
	record.ID = id.VerificationID(recordID)
	record.DocumentID = id.DocumentID(documentID)
	record.RequesterID = id.UserID(requester)
	parsed, ok := models.ParseState(state)
	if !ok {
		return models.Record{}, fmt.Errorf("decode verification state %q", state)
	}
	record.State = parsed
	if outcome.Valid {
		record.Outcome = models.Outcome(outcome.String)
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &record.Evidence); err != nil {
			return models.Record{}, fmt.Errorf("decode evidence: %w", err)
		}
	}
	return record, nil
}

func marshalEvidence(evidence map[string]string) ([]byte, error) {
	if evidence == nil {
		return nil, nil
	}
	data, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("encode evidence: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SQLTxRunner opens a database transaction and threads it through the
// context so every store call inside fn lands on the same transaction.
type SQLTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{db: db}
}

func (r *SQLTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
