//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/testutil/containers"
)

func TestPostgresStore_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../migrations")
	store := NewPostgresStore(pg.DB)
	runner := NewSQLTxRunner(pg.DB)
	ctx := context.Background()

	t.Run("partial unique index enforces single in-flight", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		documentID := id.NewDocumentID()

		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 1)))
		err := store.CreateAttempt(ctx, newRecord(documentID, models.StateScoring, 2))
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		// Failed attempts do not occupy the slot.
		require.NoError(t, pg.TruncateAll(ctx))
		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateFailed, 1)))
		assert.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateSubmitted, 2)))
	})

	t.Run("transition round-trips evidence and score", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		record := newRecord(id.NewDocumentID(), models.StateScoring, 1)
		require.NoError(t, store.CreateAttempt(ctx, record))

		score := 0.83
		record.State = models.StateDecided
		record.Outcome = models.OutcomeFlagged
		record.Score = &score
		record.Evidence = map[string]string{"scorer_version": "heuristic/1.2.0", "high_entropy": "7.9 bits"}
		record.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.Transition(ctx, record, models.StateScoring))

		got, err := store.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateDecided, got.State)
		assert.Equal(t, models.OutcomeFlagged, got.Outcome)
		require.NotNil(t, got.Score)
		assert.Equal(t, score, *got.Score)
		assert.Equal(t, record.Evidence, got.Evidence)
	})

	t.Run("re-entering review conflicts with a newer in-flight attempt", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		documentID := id.NewDocumentID()

		decided := newRecord(documentID, models.StateDecided, 1)
		require.NoError(t, store.CreateAttempt(ctx, decided))
		require.NoError(t, store.CreateAttempt(ctx, newRecord(documentID, models.StateScoring, 1)))

		decided.State = models.StateUnderReview
		decided.UpdatedAt = time.Now().UTC()
		err := store.Transition(ctx, decided, models.StateDecided)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("stale transition loses", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		record := newRecord(id.NewDocumentID(), models.StateSubmitted, 1)
		require.NoError(t, store.CreateAttempt(ctx, record))

		record.State = models.StateExtracting
		require.NoError(t, store.Transition(ctx, record, models.StateSubmitted))

		record.State = models.StateFailed
		err := store.Transition(ctx, record, models.StateSubmitted)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("tx rollback leaves no record", func(t *testing.T) {
		require.NoError(t, pg.TruncateAll(ctx))
		record := newRecord(id.NewDocumentID(), models.StateSubmitted, 1)

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := store.CreateAttempt(ctx, record); err != nil {
				return err
			}
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		_, err = store.Get(ctx, record.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInFlightMarker_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	marker := NewInFlightMarker(rc.Client, time.Minute)
	ctx := context.Background()
	documentID := id.NewDocumentID()

	ok, err := marker.Acquire(ctx, documentID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = marker.Acquire(ctx, documentID)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must lose")

	require.NoError(t, marker.Release(ctx, documentID))

	ok, err = marker.Acquire(ctx, documentID)
	require.NoError(t, err)
	assert.True(t, ok, "released marker is acquirable again")
}
