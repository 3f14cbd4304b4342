package service

import (
	"context"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/requestcontext"
)

// Retry creates a fresh attempt for a failed verification and runs the
// pipeline again. Only legal when the record is FAILED and still the
// document's latest; the failed record is kept as history, never
// resurrected. Attempts are capped by configuration and exceeding the cap
// is a reported error, never a silent drop.
func (s *Service) Retry(ctx context.Context, verificationID id.VerificationID) (models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.retry")
	defer span.End()

	prev, err := s.getRecord(ctx, verificationID)
	if err != nil {
		return models.Record{}, err
	}
	doc, content, err := s.documents.Fetch(ctx, prev.DocumentID)
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return models.Record{}, err
	}

	if prev.State != models.StateFailed {
		return models.Record{}, dErrors.Newf(dErrors.CodeConflict,
			"retry is only legal from FAILED, record is %s", prev.State)
	}
	latest, err := s.records.LatestByDocument(ctx, prev.DocumentID)
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "loading latest verification")
	}
	if latest.ID != prev.ID {
		return models.Record{}, dErrors.New(dErrors.CodeConflict,
			"a newer verification supersedes this record")
	}
	if prev.Attempt >= s.cfg.MaxAttempts {
		return models.Record{}, dErrors.Newf(dErrors.CodeRetryLimit,
			"retry limit of %d attempts reached for this document", s.cfg.MaxAttempts)
	}

	now := requestcontext.Now(ctx).UTC()
	record := models.Record{
		ID:          id.NewVerificationID(),
		DocumentID:  prev.DocumentID,
		RequesterID: requestcontext.UserID(ctx),
		State:       models.StateSubmitted,
		Attempt:     prev.Attempt + 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.createAttempt(ctx, record); err != nil {
		return models.Record{}, err
	}
	s.metrics.SubmissionStarted("retry")

	return s.runPipeline(ctx, record, doc, content)
}
