package scoring

import (
	"context"
	"fmt"

	"veridoc/internal/extraction"
)

const heuristicVersion = "heuristic/1.2.0"

// Heuristic thresholds. Entropy near 8 bits means resaved or encrypted
// content; legitimate scans and generated PDFs sit noticeably lower.
const (
	highEntropyBits  = 7.5
	tinyDocumentSize = 256
)

// HeuristicScorer is the default rule-set scorer. Rules are additive
// penalties; each firing rule leaves its contribution in the evidence so
// reviewers can see exactly why a document was flagged.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (s *HeuristicScorer) Version() string { return heuristicVersion }

func (s *HeuristicScorer) Score(_ context.Context, features extraction.Features) (float64, Evidence, error) {
	if features.SizeBytes == 0 {
		return 0, nil, fmt.Errorf("%w: empty feature set", ErrRejected)
	}

	score := 0.0
	evidence := Evidence{
		VersionKey:     heuristicVersion,
		"content_hash": features.ContentHash,
		"format":       features.Format,
	}

	if !features.MetadataConsistent {
		score += 0.45
		evidence["metadata_mismatch"] = "declared content type contradicts sniffed format"
	}
	if features.Entropy >= highEntropyBits {
		score += 0.30
		evidence["high_entropy"] = fmt.Sprintf("%.6f bits", features.Entropy)
	}
	if features.SuspectTokens > 0 {
		score += 0.25 * float64(min(features.SuspectTokens, 3))
		evidence["suspect_tokens"] = fmt.Sprintf("%d known template markers", features.SuspectTokens)
	}
	if features.SizeBytes < tinyDocumentSize {
		score += 0.20
		evidence["tiny_document"] = fmt.Sprintf("%d bytes", features.SizeBytes)
	}

	final := clamp01(score)
	evidence["score"] = fmt.Sprintf("%.6f", final)
	return final, evidence, nil
}
