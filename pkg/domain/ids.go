// Package domain holds shared domain primitives: typed identifiers and
// value objects used across features. Typed UUIDs make it a compile error
// to pass a DocumentID where a VerificationID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "veridoc/pkg/domain-errors"
)

// UserID identifies an authenticated principal (requester or admin).
type UserID uuid.UUID

// DocumentID identifies an uploaded document.
type DocumentID uuid.UUID

// VerificationID identifies a single verification attempt record.
type VerificationID uuid.UUID

// AuditEntryID identifies an immutable audit trail entry.
type AuditEntryID uuid.UUID

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", kind)
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseDocumentID validates and returns a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

// ParseVerificationID validates and returns a VerificationID.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification id")
	return VerificationID(u), err
}

// NewDocumentID generates a fresh DocumentID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewVerificationID generates a fresh VerificationID.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// NewAuditEntryID generates a fresh AuditEntryID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// NewUserID generates a fresh UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
