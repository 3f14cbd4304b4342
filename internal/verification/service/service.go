// Package service orchestrates the verification pipeline: it owns the
// lifecycle of a verification record from submission through decision,
// review, and retry, and commits every state transition atomically with
// its audit entry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veridoc/internal/document"
	"veridoc/internal/extraction"
	"veridoc/internal/scoring"
	"veridoc/internal/verification/metrics"
	"veridoc/internal/verification/models"
	"veridoc/internal/verification/store"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/requestcontext"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks veridoc/internal/verification/service Extractor,Scorer

// Extractor derives scoring features from document bytes.
type Extractor interface {
	Extract(ctx context.Context, doc document.Document, content []byte) (extraction.Features, error)
}

// Scorer is the fraud-scoring capability consumed by the pipeline.
type Scorer interface {
	Version() string
	Score(ctx context.Context, features extraction.Features) (float64, scoring.Evidence, error)
}

// Config bounds the pipeline's decision and retry policy. Values come
// from configuration; nothing here is hard-coded.
type Config struct {
	// FraudThreshold is the score at or above which a document is flagged.
	FraudThreshold float64
	// MaxAttempts caps explicit retries per document lifecycle.
	MaxAttempts int
	// ScoringRetries bounds in-attempt retries on transient scoring
	// failures.
	ScoringRetries int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Service is the verification orchestrator.
type Service struct {
	documents document.Store
	records   store.Store
	auditLog  audit.Store
	txRunner  store.TxRunner
	extractor Extractor
	scorer    Scorer
	// marker is the optional Redis fast path for duplicate submissions.
	marker  *store.InFlightMarker
	outbox  chan<- audit.Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	cfg     Config
	cancels *cancelRegistry
}

func New(
	documents document.Store,
	records store.Store,
	auditLog audit.Store,
	txRunner store.TxRunner,
	extractor Extractor,
	scorer Scorer,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	return &Service{
		documents: documents,
		records:   records,
		auditLog:  auditLog,
		txRunner:  txRunner,
		extractor: extractor,
		scorer:    scorer,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("veridoc/verification"),
		cfg:       cfg,
		cancels:   newCancelRegistry(),
	}
}

// WithInFlightMarker enables the Redis duplicate-submission fast path.
func (s *Service) WithInFlightMarker(marker *store.InFlightMarker) *Service {
	s.marker = marker
	return s
}

// WithAuditOutbox streams committed audit entries to the publisher worker.
func (s *Service) WithAuditOutbox(outbox chan<- audit.Entry) *Service {
	s.outbox = outbox
	return s
}

// Submit starts a new verification for a document and runs the pipeline
// to its terminal or decided state. Fails with a not-found error when the
// document does not exist and with a conflict when another verification
// for the same document is still in flight.
func (s *Service) Submit(ctx context.Context, documentID id.DocumentID) (models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.submit")
	defer span.End()

	doc, content, err := s.documents.Fetch(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return models.Record{}, err
	}

	now := requestcontext.Now(ctx).UTC()
	record := models.Record{
		ID:          id.NewVerificationID(),
		DocumentID:  documentID,
		RequesterID: requestcontext.UserID(ctx),
		State:       models.StateSubmitted,
		Attempt:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.createAttempt(ctx, record); err != nil {
		return models.Record{}, err
	}
	s.metrics.SubmissionStarted("submit")

	return s.runPipeline(ctx, record, doc, content)
}

// GetStatus returns the current record for a document: the active one, or
// the most recent historical one when nothing is in flight.
func (s *Service) GetStatus(ctx context.Context, documentID id.DocumentID) (models.Record, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return models.Record{}, err
	}

	record, err := s.records.LatestByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, "no verification exists for this document")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "loading verification")
	}
	return record, nil
}

// History returns every attempt for a document in creation order.
func (s *Service) History(ctx context.Context, documentID id.DocumentID) ([]models.Record, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return nil, err
	}
	records, err := s.records.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing verifications")
	}
	return records, nil
}

// AuditTrail returns the committed audit entries for a verification
// record in commit order.
func (s *Service) AuditTrail(ctx context.Context, verificationID id.VerificationID) ([]audit.Entry, error) {
	record, err := s.getRecord(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.Get(ctx, record.DocumentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return nil, err
	}
	entries, err := s.auditLog.EntriesFor(ctx, verificationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reading audit trail")
	}
	return entries, nil
}

// RecentAuditEntries is the compliance feed: the latest entries across
// all records, newest first. Admin only.
func (s *Service) RecentAuditEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	if requestcontext.PrincipalRole(ctx) != requestcontext.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.auditLog.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reading audit feed")
	}
	return entries, nil
}

func (s *Service) getRecord(ctx context.Context, verificationID id.VerificationID) (models.Record, error) {
	record, err := s.records.Get(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, "verification record not found")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "loading verification")
	}
	return record, nil
}

// authorizeOwner admits the document owner and admins.
func (s *Service) authorizeOwner(ctx context.Context, doc document.Document) error {
	if requestcontext.PrincipalRole(ctx) == requestcontext.RoleAdmin {
		return nil
	}
	if doc.OwnerID == requestcontext.UserID(ctx) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "document belongs to another user")
}

// createAttempt claims the per-document in-flight slot and persists the
// new record together with the document's active-verification link.
func (s *Service) createAttempt(ctx context.Context, record models.Record) error {
	if s.marker != nil {
		ok, err := s.marker.Acquire(ctx, record.DocumentID)
		if err != nil {
			// The database index is the authority; a Redis outage only
			// disables the fast path.
			s.logger.WarnContext(ctx, "in-flight marker unavailable",
				"document_id", record.DocumentID.String(), "error", err)
		} else if !ok {
			return dErrors.New(dErrors.CodeConflict, "a verification for this document is already in progress")
		}
	}

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.CreateAttempt(ctx, record); err != nil {
			return err
		}
		return s.documents.SetActiveVerification(ctx, record.DocumentID, record.ID)
	})
	if err != nil {
		s.releaseMarker(ctx, record.DocumentID)
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "a verification for this document is already in progress")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "creating verification record")
	}
	return nil
}

func (s *Service) releaseMarker(ctx context.Context, documentID id.DocumentID) {
	if s.marker == nil {
		return
	}
	if err := s.marker.Release(ctx, documentID); err != nil {
		s.logger.WarnContext(ctx, "releasing in-flight marker failed",
			"document_id", documentID.String(), "error", err)
	}
}
