// Package extraction derives structured signals from stored document
// bytes. Extraction is a pure function of content: the same bytes always
// produce the same Features, which is what makes re-scoring idempotent.
package extraction

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"veridoc/internal/document"
)

// Features are the signals handed to the fraud scorer. Every field is
// derived deterministically from the document bytes and metadata.
type Features struct {
	ContentHash string
	SizeBytes   int64
	// Format is the sniffed document format, one of the supported set.
	Format string
	// TextRatio is the fraction of printable bytes, in [0,1].
	TextRatio float64
	// Entropy is the Shannon entropy of the byte distribution in bits,
	// rounded to six decimals so repeated runs compare equal.
	Entropy float64
	// MetadataConsistent is false when the declared content type
	// contradicts the sniffed format, a classic tampering signal.
	MetadataConsistent bool
	// SuspectTokens counts occurrences of known fraud-template markers in
	// the printable text.
	SuspectTokens int
	LineCount     int
}

// Error reports an unreadable, corrupt, or unsupported document. The
// orchestrator fails the attempt; extraction never silently defaults.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "extraction failed: " + e.Reason }

// Extractor computes Features from document bytes.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract derives Features from the document. Signal groups are computed
// concurrently; all of them are pure functions of the same byte slice.
func (e *Extractor) Extract(ctx context.Context, doc document.Document, content []byte) (Features, error) {
	if len(content) == 0 {
		return Features{}, &Error{Reason: "document is empty"}
	}

	format, ok := sniffFormat(content)
	if !ok {
		return Features{}, &Error{Reason: fmt.Sprintf("unsupported document format (declared %q)", doc.ContentType)}
	}

	features := Features{
		ContentHash:        doc.ContentHash,
		SizeBytes:          int64(len(content)),
		Format:             format,
		MetadataConsistent: metadataConsistent(doc.ContentType, format),
	}
	if features.ContentHash == "" {
		features.ContentHash = document.HashContent(content)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		features.TextRatio, features.LineCount = textStats(content)
		return nil
	})
	g.Go(func() error {
		features.Entropy = shannonEntropy(content)
		return nil
	})
	g.Go(func() error {
		features.SuspectTokens = countSuspectTokens(content)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Features{}, err
	}

	if err := validate(features, content); err != nil {
		return Features{}, err
	}
	return features, nil
}

// validate rejects content that sniffed fine but is structurally broken.
func validate(f Features, content []byte) error {
	switch f.Format {
	case formatPDF:
		if !pdfHasTrailer(content) {
			return &Error{Reason: "truncated PDF: missing end-of-file marker"}
		}
	case formatText:
		if f.TextRatio < minTextRatio {
			return &Error{Reason: "text document is mostly unprintable bytes"}
		}
	}
	return nil
}
