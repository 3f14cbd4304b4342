package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veridoc/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDocumentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVerificationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseDocumentID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, DocumentID(valid), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety between
// ID kinds. If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	docID := DocumentID(uuid.New())
	verID := VerificationID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ DocumentID = verID     // compile error
	// var _ VerificationID = docID // compile error

	assert.NotEqual(t, uuid.UUID(docID), uuid.UUID(verID))
}
