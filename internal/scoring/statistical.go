package scoring

import (
	"context"
	"fmt"
	"math"

	"veridoc/internal/extraction"
)

const statisticalVersion = "statistical/0.9.1"

// Model weights fit offline against the labelled verification corpus.
// They are frozen constants; a refit ships as a new version tag.
const (
	weightBias          = -2.1
	weightEntropy       = 0.55
	weightMetadata      = 2.4
	weightSuspectTokens = 1.3
	weightTinySize      = 1.1
	weightLowText       = 0.8
)

// StatisticalScorer applies a fixed-weight logistic model over the
// extracted signals. Deterministic for a given version: no randomness, no
// per-request state.
type StatisticalScorer struct{}

func NewStatisticalScorer() *StatisticalScorer {
	return &StatisticalScorer{}
}

func (s *StatisticalScorer) Version() string { return statisticalVersion }

func (s *StatisticalScorer) Score(_ context.Context, features extraction.Features) (float64, Evidence, error) {
	if features.SizeBytes == 0 {
		return 0, nil, fmt.Errorf("%w: empty feature set", ErrRejected)
	}

	logit := weightBias
	logit += weightEntropy * features.Entropy
	if !features.MetadataConsistent {
		logit += weightMetadata
	}
	logit += weightSuspectTokens * float64(features.SuspectTokens)
	if features.SizeBytes < tinyDocumentSize {
		logit += weightTinySize
	}
	if features.Format == "text" && features.TextRatio < 0.8 {
		logit += weightLowText
	}

	score := round6(sigmoid(logit))
	evidence := Evidence{
		VersionKey:     statisticalVersion,
		"content_hash": features.ContentHash,
		"format":       features.Format,
		"logit":        fmt.Sprintf("%.6f", logit),
		"score":        fmt.Sprintf("%.6f", score),
	}
	return score, evidence, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
