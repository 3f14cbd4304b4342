package handler

import (
	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type submitRequest struct {
	DocumentID string `json:"document_id"`

	documentID id.DocumentID
}

func (r *submitRequest) Validate() error {
	documentID, err := id.ParseDocumentID(r.DocumentID)
	if err != nil {
		return err
	}
	r.documentID = documentID
	return nil
}

type reviewRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (r *reviewRequest) Validate() error { return nil }

type resolveReviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`

	decision models.Outcome
}

func (r *resolveReviewRequest) Validate() error {
	switch models.Outcome(r.Decision) {
	case models.OutcomeApproved, models.OutcomeFlagged:
		r.decision = models.Outcome(r.Decision)
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "decision must be APPROVED or FLAGGED, got %q", r.Decision)
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	return nil
}
