// Package scoring maps extracted features to a fraud likelihood. The
// Scorer capability is polymorphic so the rule set, the statistical model,
// and the external service can be swapped by configuration without touching
// the pipeline.
package scoring

import (
	"context"
	"errors"

	"veridoc/internal/extraction"
)

// Evidence is the structured explanation retained alongside a score.
// Insertion order is irrelevant; keys are stable signal names. Every
// scorer records its version under VersionKey so historical records stay
// interpretable after upgrades.
type Evidence map[string]string

// VersionKey is the evidence key carrying the scorer version tag.
const VersionKey = "scorer_version"

// ErrUnavailable signals a transient backend failure. The orchestrator
// retries within its configured bounds.
var ErrUnavailable = errors.New("scoring unavailable")

// ErrRejected signals permanently invalid input. Retrying cannot help.
var ErrRejected = errors.New("scoring rejected")

// Scorer is the fraud-scoring capability.
//
// Score returns a fraud likelihood in [0,1] together with supporting
// evidence. For a fixed scorer version, identical features must produce an
// identical score and evidence.
type Scorer interface {
	Version() string
	Score(ctx context.Context, features extraction.Features) (float64, Evidence, error)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
