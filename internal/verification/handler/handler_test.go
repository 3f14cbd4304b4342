package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/testutil"
)

// stubOrchestrator returns canned results per operation.
type stubOrchestrator struct {
	record  models.Record
	records []models.Record
	entries []audit.Entry
	err     error

	gotDocumentID     id.DocumentID
	gotVerificationID id.VerificationID
	gotDecision       models.Outcome
	gotReason         string
}

func (s *stubOrchestrator) Submit(_ context.Context, documentID id.DocumentID) (models.Record, error) {
	s.gotDocumentID = documentID
	return s.record, s.err
}

func (s *stubOrchestrator) Retry(_ context.Context, verificationID id.VerificationID) (models.Record, error) {
	s.gotVerificationID = verificationID
	return s.record, s.err
}

func (s *stubOrchestrator) RequestReview(_ context.Context, verificationID id.VerificationID, reason string) (models.Record, error) {
	s.gotVerificationID = verificationID
	s.gotReason = reason
	return s.record, s.err
}

func (s *stubOrchestrator) ResolveReview(_ context.Context, verificationID id.VerificationID, decision models.Outcome, reason string) (models.Record, error) {
	s.gotVerificationID = verificationID
	s.gotDecision = decision
	s.gotReason = reason
	return s.record, s.err
}

func (s *stubOrchestrator) Cancel(_ context.Context, verificationID id.VerificationID) error {
	s.gotVerificationID = verificationID
	return s.err
}

func (s *stubOrchestrator) GetStatus(_ context.Context, documentID id.DocumentID) (models.Record, error) {
	s.gotDocumentID = documentID
	return s.record, s.err
}

func (s *stubOrchestrator) History(_ context.Context, documentID id.DocumentID) ([]models.Record, error) {
	s.gotDocumentID = documentID
	return s.records, s.err
}

func (s *stubOrchestrator) AuditTrail(_ context.Context, verificationID id.VerificationID) ([]audit.Entry, error) {
	s.gotVerificationID = verificationID
	return s.entries, s.err
}

func (s *stubOrchestrator) RecentAuditEntries(context.Context, int) ([]audit.Entry, error) {
	return s.entries, s.err
}

func newRouter(stub *stubOrchestrator) http.Handler {
	r := chi.NewRouter()
	New(stub, slog.New(slog.DiscardHandler)).Routes(r)
	return r
}

func decidedRecord() models.Record {
	score := 0.42
	now := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	return models.Record{
		ID:          id.NewVerificationID(),
		DocumentID:  id.NewDocumentID(),
		RequesterID: id.NewUserID(),
		State:       models.StateDecided,
		Outcome:     models.OutcomeApproved,
		Score:       &score,
		Evidence:    map[string]string{"scorer_version": "heuristic/1.2.0"},
		Attempt:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		stub := &stubOrchestrator{record: decidedRecord()}
		documentID := stub.record.DocumentID.String()

		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost, "/verifications", map[string]string{"document_id": documentID}))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, documentID, (*resp)["document_id"])
		assert.Equal(t, "DECIDED", (*resp)["state"])
		assert.Equal(t, documentID, stub.gotDocumentID.String())
	})

	t.Run("invalid document id", func(t *testing.T) {
		stub := &stubOrchestrator{}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost, "/verifications", map[string]string{"document_id": "nope"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		stub := &stubOrchestrator{err: dErrors.New(dErrors.CodeConflict, "a verification for this document is already in progress")}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost, "/verifications", map[string]string{"document_id": id.NewDocumentID().String()}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	t.Run("internal errors hide details", func(t *testing.T) {
		stub := &stubOrchestrator{err: dErrors.New(dErrors.CodeInternal, "pool exhausted")}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost, "/verifications", map[string]string{"document_id": id.NewDocumentID().String()}))

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		resp := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Empty(t, (*resp)["error_description"])
	})
}

func TestRetryEndpoint(t *testing.T) {
	t.Run("retry limit maps to 409", func(t *testing.T) {
		stub := &stubOrchestrator{err: dErrors.New(dErrors.CodeRetryLimit, "retry limit of 3 attempts reached for this document")}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodPost, "/verifications/"+id.NewVerificationID().String()+"/retry"))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "retry_limit_exceeded")
	})

	t.Run("created on success", func(t *testing.T) {
		stub := &stubOrchestrator{record: decidedRecord()}
		verificationID := id.NewVerificationID()
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodPost, "/verifications/"+verificationID.String()+"/retry"))

		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, verificationID, stub.gotVerificationID)
	})
}

func TestReviewEndpoints(t *testing.T) {
	t.Run("request review passes reason", func(t *testing.T) {
		stub := &stubOrchestrator{record: decidedRecord()}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost,
				"/verifications/"+id.NewVerificationID().String()+"/review",
				map[string]string{"reason": "customer appeal"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "customer appeal", stub.gotReason)
	})

	t.Run("resolve validates decision", func(t *testing.T) {
		stub := &stubOrchestrator{}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost,
				"/verifications/"+id.NewVerificationID().String()+"/review/resolve",
				map[string]string{"decision": "MAYBE", "reason": "r"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	t.Run("resolve passes decision and reason", func(t *testing.T) {
		stub := &stubOrchestrator{record: decidedRecord()}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost,
				"/verifications/"+id.NewVerificationID().String()+"/review/resolve",
				map[string]string{"decision": "APPROVED", "reason": "inspected"}))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, models.OutcomeApproved, stub.gotDecision)
		assert.Equal(t, "inspected", stub.gotReason)
	})

	t.Run("forbidden maps to 403", func(t *testing.T) {
		stub := &stubOrchestrator{err: dErrors.New(dErrors.CodeForbidden, "admin role required")}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewJSONRequest(t, http.MethodPost,
				"/verifications/"+id.NewVerificationID().String()+"/review",
				map[string]string{}))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})
}

func TestStatusAndAuditEndpoints(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		stub := &stubOrchestrator{record: decidedRecord()}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodGet, "/documents/"+stub.record.DocumentID.String()+"/verification"))

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "APPROVED", (*resp)["outcome"])
	})

	t.Run("status not found", func(t *testing.T) {
		stub := &stubOrchestrator{err: dErrors.New(dErrors.CodeNotFound, "document not found")}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodGet, "/documents/"+id.NewDocumentID().String()+"/verification"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("audit trail", func(t *testing.T) {
		verificationID := id.NewVerificationID()
		stub := &stubOrchestrator{entries: []audit.Entry{{
			ID:             id.NewAuditEntryID(),
			VerificationID: verificationID,
			FromState:      "SUBMITTED",
			ToState:        "EXTRACTING",
			Actor:          audit.SystemActor,
			Schema:         audit.SchemaVersion,
			Seq:            1,
		}}}

		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodGet, "/verifications/"+verificationID.String()+"/audit"))

		testutil.AssertStatus(t, rr, http.StatusOK)
		type trail struct {
			Entries []auditEntryResponse `json:"entries"`
		}
		resp := testutil.UnmarshalResponse[trail](t, rr)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "EXTRACTING", resp.Entries[0].ToState)
	})

	t.Run("cancel accepted", func(t *testing.T) {
		stub := &stubOrchestrator{}
		rr := testutil.DoRequest(newRouter(stub),
			testutil.NewRequest(t, http.MethodPost, "/verifications/"+id.NewVerificationID().String()+"/cancel"))
		testutil.AssertStatus(t, rr, http.StatusAccepted)
	})
}

func TestRecentAuditEndpoint(t *testing.T) {
	stub := &stubOrchestrator{entries: []audit.Entry{{
		ID:             id.NewAuditEntryID(),
		VerificationID: id.NewVerificationID(),
		FromState:      "SCORING",
		ToState:        "DECIDED",
		Actor:          audit.SystemActor,
		Schema:         audit.SchemaVersion,
		Seq:            7,
	}}}
	router := newRouter(stub)

	testutil.Given(t, "a caller without the admin role", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/audit/recent"))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	testutil.When(t, "an admin requests the feed", func(t *testing.T) {
		req := testutil.WithAdmin(testutil.NewRequest(t, http.MethodGet, "/audit/recent?limit=10"), id.NewUserID().String())
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		type feed struct {
			Entries []auditEntryResponse `json:"entries"`
		}
		resp := testutil.UnmarshalResponse[feed](t, rr)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "DECIDED", resp.Entries[0].ToState)
	})
}
