package service

import (
	"context"
	"fmt"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/requestcontext"
)

// RequestReview places a decided verification under admin review. Only
// legal from DECIDED, admin only.
func (s *Service) RequestReview(ctx context.Context, verificationID id.VerificationID, reason string) (models.Record, error) {
	if err := requireAdmin(ctx); err != nil {
		return models.Record{}, err
	}
	record, err := s.getRecord(ctx, verificationID)
	if err != nil {
		return models.Record{}, err
	}
	if record.State != models.StateDecided {
		return models.Record{}, dErrors.Newf(dErrors.CodeConflict,
			"review can only be requested from DECIDED, record is %s", record.State)
	}

	admin := requestcontext.UserID(ctx)
	if reason == "" {
		reason = "admin review requested"
	}
	err = s.transition(ctx, &record, models.StateUnderReview, admin.String(), reason, nil)
	if err != nil {
		return models.Record{}, err
	}
	s.logger.InfoContext(ctx, "review requested",
		"verification_id", record.ID.String(), "admin_id", admin.String())
	return record, nil
}

// ResolveReview closes an admin review. A decision that differs from the
// automatic outcome moves the record to OVERRIDDEN; upholding it returns
// the record to DECIDED with an audit entry noting the confirmation.
func (s *Service) ResolveReview(ctx context.Context, verificationID id.VerificationID, decision models.Outcome, reason string) (models.Record, error) {
	if err := requireAdmin(ctx); err != nil {
		return models.Record{}, err
	}
	if decision != models.OutcomeApproved && decision != models.OutcomeFlagged {
		return models.Record{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown review decision %q", decision)
	}
	if reason == "" {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "a review resolution requires a reason")
	}

	record, err := s.getRecord(ctx, verificationID)
	if err != nil {
		return models.Record{}, err
	}
	if record.State != models.StateUnderReview {
		return models.Record{}, dErrors.Newf(dErrors.CodeConflict,
			"review can only be resolved from UNDER_REVIEW, record is %s", record.State)
	}

	admin := requestcontext.UserID(ctx)
	if decision == record.Outcome {
		err = s.transition(ctx, &record, models.StateDecided, admin.String(),
			fmt.Sprintf("automatic outcome %s upheld: %s", record.Outcome, reason),
			func(r *models.Record) { r.DecisionReason = reason })
		if err != nil {
			return models.Record{}, err
		}
		s.metrics.ReviewResolved("upheld")
	} else {
		err = s.transition(ctx, &record, models.StateOverridden, admin.String(),
			fmt.Sprintf("outcome overridden from %s to %s: %s", record.Outcome, decision, reason),
			func(r *models.Record) {
				r.Outcome = decision
				r.DecisionReason = reason
			})
		if err != nil {
			return models.Record{}, err
		}
		s.metrics.ReviewResolved("overridden")
	}

	s.logger.InfoContext(ctx, "review resolved",
		"verification_id", record.ID.String(),
		"admin_id", admin.String(),
		"decision", string(decision),
		"final_state", string(record.State),
	)
	return record, nil
}

func requireAdmin(ctx context.Context) error {
	if requestcontext.PrincipalRole(ctx) != requestcontext.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}
