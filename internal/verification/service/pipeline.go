package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"veridoc/internal/document"
	"veridoc/internal/extraction"
	"veridoc/internal/scoring"
	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/requestcontext"
)

// Pipeline stage labels for metrics and failure reasons.
const (
	stageExtraction = "extraction"
	stageScoring    = "scoring"
)

// reasonCancelled is the decision reason recorded when an in-flight
// verification is cancelled between stages.
const reasonCancelled = "cancelled"

// runPipeline drives a freshly created record through extract, score, and
// decide. Extraction and scoring run outside any transaction; only the
// transition plus its audit entry are committed atomically. A pipeline
// failure is not an error to the caller: the record lands in FAILED with a
// reason and is returned as-is.
func (s *Service) runPipeline(ctx context.Context, record models.Record, doc document.Document, content []byte) (models.Record, error) {
	s.cancels.track(record.ID)
	defer s.cancels.forget(record.ID)
	defer s.releaseMarker(ctx, record.DocumentID)

	if err := s.transition(ctx, &record, models.StateExtracting, audit.SystemActor, "", nil); err != nil {
		return models.Record{}, err
	}

	features, err := s.extractStage(ctx, record, doc, content)
	if err != nil {
		return s.failAttempt(ctx, record, stageExtraction, err.Error())
	}
	if s.cancels.requested(record.ID) {
		return s.failAttempt(ctx, record, stageExtraction, reasonCancelled)
	}

	if err := s.transition(ctx, &record, models.StateScoring, audit.SystemActor, "", nil); err != nil {
		return models.Record{}, err
	}

	score, evidence, err := s.scoreStage(ctx, record, features)
	if err != nil {
		return s.failAttempt(ctx, record, stageScoring, err.Error())
	}
	if s.cancels.requested(record.ID) {
		return s.failAttempt(ctx, record, stageScoring, reasonCancelled)
	}

	outcome := models.Decide(score, s.cfg.FraudThreshold)
	err = s.transition(ctx, &record, models.StateDecided, audit.SystemActor,
		fmt.Sprintf("automatic decision: %s (score %.6f)", outcome, score),
		func(r *models.Record) {
			r.Outcome = outcome
			r.Score = &score
			r.Evidence = map[string]string(evidence)
		})
	if err != nil {
		return models.Record{}, err
	}
	s.metrics.DecisionReached(string(outcome))
	s.logger.InfoContext(ctx, "verification decided",
		"verification_id", record.ID.String(),
		"document_id", record.DocumentID.String(),
		"outcome", string(outcome),
		"attempt", record.Attempt,
	)
	return record, nil
}

func (s *Service) extractStage(ctx context.Context, record models.Record, doc document.Document, content []byte) (extraction.Features, error) {
	ctx, span := s.tracer.Start(ctx, "verification.extract")
	defer span.End()
	span.SetAttributes(attribute.String("verification.id", record.ID.String()))

	start := requestcontext.Now(ctx)
	features, err := s.extractor.Extract(ctx, doc, content)
	s.metrics.ObserveStage(stageExtraction, requestcontext.Now(ctx).Sub(start))
	return features, err
}

// scoreStage calls the scorer, retrying transient failures with
// exponential backoff up to the configured bound. Permanent rejections and
// exhaustion both surface as errors that fail the attempt.
func (s *Service) scoreStage(ctx context.Context, record models.Record, features extraction.Features) (float64, scoring.Evidence, error) {
	ctx, span := s.tracer.Start(ctx, "verification.score")
	defer span.End()
	span.SetAttributes(attribute.String("verification.id", record.ID.String()))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.BackoffInitial
	policy.MaxInterval = s.cfg.BackoffMax

	var (
		score    float64
		evidence scoring.Evidence
		tries    int
	)
	operation := func() error {
		tries++
		var err error
		score, evidence, err = s.scorer.Score(ctx, features)
		if err == nil {
			return nil
		}
		if errors.Is(err, scoring.ErrUnavailable) {
			s.metrics.ScoringRetried()
			s.logger.WarnContext(ctx, "scoring unavailable, retrying",
				"verification_id", record.ID.String(), "try", tries, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(s.cfg.ScoringRetries)), ctx))
	if err != nil {
		if errors.Is(err, scoring.ErrUnavailable) {
			return 0, nil, fmt.Errorf("scoring unavailable after %d tries: %w", tries, err)
		}
		return 0, nil, err
	}
	return score, evidence, nil
}

// failAttempt moves the record to FAILED with a human-readable reason.
func (s *Service) failAttempt(ctx context.Context, record models.Record, stage, reason string) (models.Record, error) {
	err := s.transition(ctx, &record, models.StateFailed, audit.SystemActor, reason,
		func(r *models.Record) { r.DecisionReason = reason })
	if err != nil {
		return models.Record{}, err
	}
	s.metrics.AttemptFailed(stage)
	s.logger.WarnContext(ctx, "verification failed",
		"verification_id", record.ID.String(),
		"document_id", record.DocumentID.String(),
		"stage", stage,
		"reason", reason,
	)
	return record, nil
}

// transition commits a state change and its audit entry as one unit. On
// success the in-memory record is advanced to the committed value and the
// entry is handed to the publisher outbox.
func (s *Service) transition(ctx context.Context, record *models.Record, to models.State, actor, reason string, mutate func(*models.Record)) error {
	from := record.State
	if !models.CanTransition(from, to) {
		return dErrors.Newf(dErrors.CodeConflict, "illegal transition %s -> %s", from, to)
	}

	now := requestcontext.Now(ctx).UTC()
	next := record.Clone()
	next.State = to
	next.UpdatedAt = now
	if mutate != nil {
		mutate(&next)
	}

	entry := audit.Entry{
		ID:             id.NewAuditEntryID(),
		VerificationID: record.ID,
		FromState:      string(from),
		ToState:        string(to),
		Actor:          actor,
		ActorIP:        requestcontext.ClientIP(ctx),
		ActorAgent:     requestcontext.UserAgent(ctx),
		Reason:         reason,
		Schema:         audit.SchemaVersion,
		Timestamp:      now,
	}

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.Transition(ctx, next, from); err != nil {
			return err
		}
		seq, err := s.auditLog.Append(ctx, entry)
		if err != nil {
			return err
		}
		entry.Seq = seq
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Newf(dErrors.CodeConflict, "verification moved out of %s concurrently", from)
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeConflict, "another verification for this document is in flight")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "verification record not found")
		case errors.Is(err, sentinel.ErrImmutable):
			return dErrors.Wrap(err, dErrors.CodeInternal, "audit integrity violation")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "committing state transition")
	}

	s.publishEntry(ctx, entry)
	*record = next
	return nil
}

// publishEntry hands a committed entry to the outbox. Best effort: the
// database is the source of truth, a full outbox only costs the stream.
func (s *Service) publishEntry(ctx context.Context, entry audit.Entry) {
	if s.outbox == nil {
		return
	}
	select {
	case s.outbox <- entry:
	default:
		s.logger.WarnContext(ctx, "audit outbox full, dropping stream entry",
			"verification_id", entry.VerificationID.String(), "seq", entry.Seq)
	}
}
