package testutil

import (
	"net/http"

	id "veridoc/pkg/domain"
	"veridoc/pkg/requestcontext"
)

// WithUserID stamps an authenticated user onto the request, simulating the
// auth middleware. Invalid IDs are silently ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithRole stamps a principal role onto the request.
func WithRole(req *http.Request, role requestcontext.Role) *http.Request {
	return req.WithContext(requestcontext.WithRole(req.Context(), role))
}

// WithAdmin stamps an authenticated admin onto the request.
func WithAdmin(req *http.Request, userID string) *http.Request {
	return WithRole(WithUserID(req, userID), requestcontext.RoleAdmin)
}
