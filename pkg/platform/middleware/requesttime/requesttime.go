// Package requesttime pins a single timestamp per request so every store
// write and audit entry within one operation shares the same clock reading.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"veridoc/pkg/requestcontext"
)

// RequestTime stamps the context with the arrival time and a correlation
// ID (honoring an inbound X-Request-ID when present).
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
