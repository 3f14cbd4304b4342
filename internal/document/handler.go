package document

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
	"veridoc/pkg/requestcontext"
)

// maxUploadBytes caps inline uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler exposes document upload and listing.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/documents", h.upload)
	r.Get("/documents", h.list)
}

type uploadRequest struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	// Content is the base64-encoded document payload.
	Content string `json:"content"`

	decoded []byte
}

func (r *uploadRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}
	if r.Content == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "content is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "content must be base64 encoded")
	}
	if len(decoded) > maxUploadBytes {
		return dErrors.Newf(dErrors.CodeUnprocessable, "document exceeds the %d byte upload limit", maxUploadBytes)
	}
	r.decoded = decoded
	return nil
}

type documentResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`

	ActiveVerificationID string `json:"active_verification_id,omitempty"`
}

func toDocumentResponse(doc Document) documentResponse {
	resp := documentResponse{
		ID:          doc.ID.String(),
		Title:       doc.Title,
		ContentHash: doc.ContentHash,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		UploadedAt:  doc.UploadedAt,
	}
	if doc.ActiveVerificationID != nil {
		resp.ActiveVerificationID = doc.ActiveVerificationID.String()
	}
	return resp
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[*uploadRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	now := requestcontext.Now(ctx).UTC()
	docID := id.NewDocumentID()
	doc := Document{
		ID:      docID,
		OwnerID: requestcontext.UserID(ctx),
		Title:   req.Title,
		// The object key the bytes would live under in blob storage.
		StorageRef:  "documents/" + docID.String(),
		ContentType: req.ContentType,
		UploadedAt:  now,
	}
	if err := h.store.Save(ctx, doc, req.decoded); err != nil {
		h.logger.ErrorContext(ctx, "saving document failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "saving document"))
		return
	}

	saved, err := h.store.Get(ctx, doc.ID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "loading document"))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(saved))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.store.ListByOwner(ctx, requestcontext.UserID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "listing documents"))
		return
	}

	out := make([]documentResponse, len(docs))
	for i, doc := range docs {
		out[i] = toDocumentResponse(doc)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
}
