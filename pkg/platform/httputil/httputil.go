// Package httputil centralizes JSON response writing and domain error
// translation so every handler produces the same envelopes.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"

	dErrors "veridoc/pkg/domain-errors"
)

// codeToStatus maps domain error codes onto HTTP status codes.
var codeToStatus = map[dErrors.Code]int{
	dErrors.CodeBadRequest:    http.StatusBadRequest,
	dErrors.CodeInvalidInput:  http.StatusBadRequest,
	dErrors.CodeNotFound:      http.StatusNotFound,
	dErrors.CodeConflict:      http.StatusConflict,
	dErrors.CodeUnauthorized:  http.StatusUnauthorized,
	dErrors.CodeForbidden:     http.StatusForbidden,
	dErrors.CodeUnprocessable: http.StatusUnprocessableEntity,
	dErrors.CodeUnavailable:   http.StatusServiceUnavailable,
	dErrors.CodeRetryLimit:    http.StatusConflict,
	dErrors.CodeTimeout:       http.StatusGatewayTimeout,
	dErrors.CodeInternal:      http.StatusInternalServerError,
}

// ToHTTPStatus resolves a domain error code to its HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	if status, ok := codeToStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError translates a domain error into the standard JSON error
// envelope. Internal errors omit the description so implementation details
// never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}
	if code != dErrors.CodeInternal {
		envelope.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, ToHTTPStatus(code), envelope)
}

// Validatable is implemented by request DTOs that can validate themselves.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the request body into T and runs its validation,
// writing the error response itself on failure. Handlers bail out when the
// second return value is false.
func DecodeAndPrepare[T Validatable](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	// A body of "null" decodes cleanly but leaves a pointer DTO nil.
	if v := reflect.ValueOf(req); v.Kind() == reflect.Pointer && v.IsNil() {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		WriteError(w, err)
		return req, false
	}
	return req, true
}
