package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

func newRecord(documentID id.DocumentID, state models.State, attempt int) models.Record {
	now := time.Now().UTC()
	return models.Record{
		ID:          id.NewVerificationID(),
		DocumentID:  documentID,
		RequesterID: id.NewUserID(),
		State:       state,
		Attempt:     attempt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInMemoryStore_CreateAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects second in-flight attempt for same document", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 1)))
		err := store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 2))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("allows new attempt after failure", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateFailed, 1)))
		assert.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 2)))
	})

	t.Run("allows re-verification after decision", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateDecided, 1)))
		assert.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 2)))
	})

	t.Run("under review blocks new submissions", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateUnderReview, 1)))
		err := store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 2))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("exactly one concurrent submission wins", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		const racers = 16
		var wg sync.WaitGroup
		errs := make([]error, racers)
		for i := range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 1))
			}()
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, sentinel.ErrConflict)
			}
		}
		assert.Equal(t, 1, winners)
	})
}

func TestInMemoryStore_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("guarded by expected state", func(t *testing.T) {
		store := NewInMemoryStore()
		record := newRecord(id.NewDocumentID(), models.StateSubmitted, 1)
		require.NoError(t, store.CreateAttempt(ctx, record))

		record.State = models.StateExtracting
		require.NoError(t, store.Transition(ctx, record, models.StateSubmitted))

		// A second writer holding the stale expectation loses.
		record.State = models.StateFailed
		err := store.Transition(ctx, record, models.StateSubmitted)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)

		got, err := store.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateExtracting, got.State)
	})

	t.Run("missing record", func(t *testing.T) {
		store := NewInMemoryStore()
		err := store.Transition(ctx, newRecord(id.NewDocumentID(), models.StateExtracting, 1), models.StateSubmitted)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("re-entering review conflicts with a newer in-flight attempt", func(t *testing.T) {
		store := NewInMemoryStore()
		documentID := id.NewDocumentID()

		decided := newRecord(documentID, models.StateDecided, 1)
		require.NoError(t, store.CreateAttempt(ctx, decided))
		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateScoring, 1)))

		decided.State = models.StateUnderReview
		err := store.Transition(ctx, decided, models.StateDecided)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		got, err := store.Get(ctx, decided.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateDecided, got.State)
	})
}

func TestInMemoryStore_Queries(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	documentID := id.NewDocumentID()

	first := newRecord(documentID, models.StateFailed, 1)
	second := newRecord(documentID, models.StateDecided, 2)
	require.NoError(t, store.CreateAttempt(ctx, first))
	require.NoError(t, store.CreateAttempt(ctx, second))

	t.Run("latest picks most recently created", func(t *testing.T) {
		latest, err := store.LatestByDocument(ctx, documentID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	})

	t.Run("list orders by attempt", func(t *testing.T) {
		records, err := store.ListByDocument(ctx, documentID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, first.ID, records[0].ID)
		assert.Equal(t, second.ID, records[1].ID)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := store.LatestByDocument(ctx, id.NewDocumentID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("reads do not alias store state", func(t *testing.T) {
		got, err := store.Get(ctx, second.ID)
		require.NoError(t, err)
		got.State = models.StateFailed

		again, err := store.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateDecided, again.State)
	})
}
