package service

import (
	"context"
	"sync"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// Cancel requests cancellation of an in-flight verification. The pipeline
// honors the request at the next stage boundary only, never mid-extraction
// or mid-scoring, and records FAILED with reason "cancelled".
func (s *Service) Cancel(ctx context.Context, verificationID id.VerificationID) error {
	record, err := s.getRecord(ctx, verificationID)
	if err != nil {
		return err
	}
	doc, err := s.documents.Get(ctx, record.DocumentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "fetching document")
	}
	if err := s.authorizeOwner(ctx, doc); err != nil {
		return err
	}

	if !s.cancels.request(verificationID) {
		return dErrors.New(dErrors.CodeConflict, "verification is not running in this process")
	}
	s.logger.InfoContext(ctx, "cancellation requested", "verification_id", verificationID.String())
	return nil
}

// cancelRegistry tracks pipelines running in this process so cancellation
// requests can reach them between stages.
type cancelRegistry struct {
	mu      sync.Mutex
	running map[id.VerificationID]bool
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{running: make(map[id.VerificationID]bool)}
}

func (r *cancelRegistry) track(verificationID id.VerificationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[verificationID] = false
}

func (r *cancelRegistry) forget(verificationID id.VerificationID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, verificationID)
}

// request marks a running pipeline for cancellation. Returns false when
// the verification is not currently running here.
func (r *cancelRegistry) request(verificationID id.VerificationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[verificationID]; !ok {
		return false
	}
	r.running[verificationID] = true
	return true
}

func (r *cancelRegistry) requested(verificationID id.VerificationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[verificationID]
}
