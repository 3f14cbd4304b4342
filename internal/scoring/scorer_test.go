package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/extraction"
)

func cleanFeatures() extraction.Features {
	return extraction.Features{
		ContentHash:        "ab12",
		SizeBytes:          4096,
		Format:             "pdf",
		TextRatio:          0.92,
		Entropy:            4.2,
		MetadataConsistent: true,
		SuspectTokens:      0,
		LineCount:          40,
	}
}

func TestHeuristicScorer(t *testing.T) {
	scorer := NewHeuristicScorer()
	ctx := context.Background()

	t.Run("clean document scores zero", func(t *testing.T) {
		score, evidence, err := scorer.Score(ctx, cleanFeatures())
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
		assert.Equal(t, heuristicVersion, evidence[VersionKey])
	})

	t.Run("each rule leaves evidence", func(t *testing.T) {
		features := cleanFeatures()
		features.MetadataConsistent = false
		features.Entropy = 7.9
		features.SuspectTokens = 2
		features.SizeBytes = 100

		score, evidence, err := scorer.Score(ctx, features)
		require.NoError(t, err)
		assert.Equal(t, 1.0, score, "stacked penalties clamp to 1")
		assert.Contains(t, evidence, "metadata_mismatch")
		assert.Contains(t, evidence, "high_entropy")
		assert.Contains(t, evidence, "suspect_tokens")
		assert.Contains(t, evidence, "tiny_document")
	})

	t.Run("deterministic", func(t *testing.T) {
		features := cleanFeatures()
		features.SuspectTokens = 1

		first, firstEvidence, err := scorer.Score(ctx, features)
		require.NoError(t, err)
		for range 5 {
			again, againEvidence, err := scorer.Score(ctx, features)
			require.NoError(t, err)
			assert.Equal(t, first, again)
			assert.Equal(t, firstEvidence, againEvidence)
		}
	})

	t.Run("empty features rejected", func(t *testing.T) {
		_, _, err := scorer.Score(ctx, extraction.Features{})
		assert.ErrorIs(t, err, ErrRejected)
	})
}

func TestStatisticalScorer(t *testing.T) {
	scorer := NewStatisticalScorer()
	ctx := context.Background()

	t.Run("score stays in range", func(t *testing.T) {
		features := cleanFeatures()
		features.MetadataConsistent = false
		features.SuspectTokens = 5
		features.Entropy = 7.99

		score, evidence, err := scorer.Score(ctx, features)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
		assert.Equal(t, statisticalVersion, evidence[VersionKey])
		assert.Contains(t, evidence, "logit")
	})

	t.Run("suspicious document outranks clean one", func(t *testing.T) {
		clean, _, err := scorer.Score(ctx, cleanFeatures())
		require.NoError(t, err)

		features := cleanFeatures()
		features.MetadataConsistent = false
		features.SuspectTokens = 3
		suspicious, _, err := scorer.Score(ctx, features)
		require.NoError(t, err)

		assert.Greater(t, suspicious, clean)
	})
}

func TestExternalScorer(t *testing.T) {
	ctx := context.Background()

	t.Run("successful score", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/score", r.URL.Path)
			var req externalRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ab12", req.ContentHash)

			json.NewEncoder(w).Encode(externalResponse{
				Score:    0.83,
				Version:  "remote/2.1",
				Evidence: map[string]string{"top_signal": "metadata_mismatch"},
			})
		}))
		defer srv.Close()

		score, evidence, err := NewExternalScorer(srv.URL).Score(ctx, cleanFeatures())
		require.NoError(t, err)
		assert.Equal(t, 0.83, score)
		assert.Equal(t, "remote/2.1", evidence[VersionKey])
		assert.Equal(t, "metadata_mismatch", evidence["top_signal"])
	})

	t.Run("5xx maps to unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, _, err := NewExternalScorer(srv.URL).Score(ctx, cleanFeatures())
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("422 maps to rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		_, _, err := NewExternalScorer(srv.URL).Score(ctx, cleanFeatures())
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("unreachable host maps to unavailable", func(t *testing.T) {
		_, _, err := NewExternalScorer("http://127.0.0.1:1").Score(ctx, cleanFeatures())
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
