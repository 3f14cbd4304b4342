package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"veridoc/internal/extraction"
)

const externalTimeout = 5 * time.Second

// ExternalScorer delegates scoring to a remote model service over HTTP.
// Transport failures and 5xx responses surface as ErrUnavailable so the
// orchestrator can retry; a 422 means the service permanently refused the
// features and maps to ErrRejected.
type ExternalScorer struct {
	baseURL string
	client  *http.Client
}

func NewExternalScorer(baseURL string) *ExternalScorer {
	return &ExternalScorer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: externalTimeout},
	}
}

func (s *ExternalScorer) Version() string { return "external/" + s.baseURL }

type externalRequest struct {
	ContentHash        string  `json:"content_hash"`
	SizeBytes          int64   `json:"size_bytes"`
	Format             string  `json:"format"`
	TextRatio          float64 `json:"text_ratio"`
	Entropy            float64 `json:"entropy"`
	MetadataConsistent bool    `json:"metadata_consistent"`
	SuspectTokens      int     `json:"suspect_tokens"`
	LineCount          int     `json:"line_count"`
}

type externalResponse struct {
	Score    float64           `json:"score"`
	Version  string            `json:"model_version"`
	Evidence map[string]string `json:"evidence"`
}

func (s *ExternalScorer) Score(ctx context.Context, features extraction.Features) (float64, Evidence, error) {
	payload, err := json.Marshal(externalRequest{
		ContentHash:        features.ContentHash,
		SizeBytes:          features.SizeBytes,
		Format:             features.Format,
		TextRatio:          features.TextRatio,
		Entropy:            features.Entropy,
		MetadataConsistent: features.MetadataConsistent,
		SuspectTokens:      features.SuspectTokens,
		LineCount:          features.LineCount,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("encoding score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("building score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return 0, nil, fmt.Errorf("%w: model refused features", ErrRejected)
	case resp.StatusCode >= 500:
		return 0, nil, fmt.Errorf("%w: model service returned %d", ErrUnavailable, resp.StatusCode)
	default:
		return 0, nil, fmt.Errorf("model service returned unexpected status %d", resp.StatusCode)
	}

	var body externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, nil, fmt.Errorf("%w: decoding score response: %v", ErrUnavailable, err)
	}

	evidence := Evidence{VersionKey: body.Version}
	for k, v := range body.Evidence {
		evidence[k] = v
	}
	return clamp01(body.Score), evidence, nil
}
