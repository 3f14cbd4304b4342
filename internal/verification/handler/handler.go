// Package handler exposes the verification orchestrator over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/httputil"
	authmw "veridoc/pkg/platform/middleware/auth"
	"veridoc/pkg/requestcontext"
)

// Orchestrator is the service surface the handler depends on.
type Orchestrator interface {
	Submit(ctx context.Context, documentID id.DocumentID) (models.Record, error)
	Retry(ctx context.Context, verificationID id.VerificationID) (models.Record, error)
	RequestReview(ctx context.Context, verificationID id.VerificationID, reason string) (models.Record, error)
	ResolveReview(ctx context.Context, verificationID id.VerificationID, decision models.Outcome, reason string) (models.Record, error)
	Cancel(ctx context.Context, verificationID id.VerificationID) error
	GetStatus(ctx context.Context, documentID id.DocumentID) (models.Record, error)
	History(ctx context.Context, documentID id.DocumentID) ([]models.Record, error)
	AuditTrail(ctx context.Context, verificationID id.VerificationID) ([]audit.Entry, error)
	RecentAuditEntries(ctx context.Context, limit int) ([]audit.Entry, error)
}

type Handler struct {
	service Orchestrator
	logger  *slog.Logger
}

func New(service Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the verification endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/verifications", h.submit)
	r.Post("/verifications/{verificationID}/retry", h.retry)
	r.Post("/verifications/{verificationID}/review", h.requestReview)
	r.Post("/verifications/{verificationID}/review/resolve", h.resolveReview)
	r.Post("/verifications/{verificationID}/cancel", h.cancel)
	r.Get("/verifications/{verificationID}/audit", h.auditTrail)
	r.Get("/documents/{documentID}/verification", h.status)
	r.Get("/documents/{documentID}/verifications", h.history)
	r.With(authmw.RequireAdmin).Get("/audit/recent", h.recentAudit)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[*submitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.service.Submit(ctx, req.documentID)
	if err != nil {
		h.logger.WarnContext(ctx, "submit failed",
			"request_id", requestcontext.RequestID(ctx),
			"document_id", req.DocumentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Retry(ctx, verificationID)
	if err != nil {
		h.logger.WarnContext(ctx, "retry failed",
			"request_id", requestcontext.RequestID(ctx),
			"verification_id", verificationID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) requestReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*reviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.service.RequestReview(ctx, verificationID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) resolveReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[*resolveReviewRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.service.ResolveReview(ctx, verificationID, req.decision, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Cancel(ctx, verificationID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.GetStatus(ctx, documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.History(ctx, documentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"verifications": toRecordResponses(records)})
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.AuditTrail(ctx, verificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": toAuditEntryResponses(entries)})
}

func (h *Handler) recentAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.RecentAuditEntries(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": toAuditEntryResponses(entries)})
}
