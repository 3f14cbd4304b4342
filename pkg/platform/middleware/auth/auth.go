// Package auth provides JWT bearer-token middleware. Token issuance lives
// with the identity collaborator; this middleware only validates signatures
// and hands the pipeline an authenticated principal.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
	"veridoc/pkg/requestcontext"
)

// Claims carried by access tokens. Role gates the admin review endpoints.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens with an HMAC signing key.
type Validator struct {
	signingKey []byte
}

// NewValidator constructs a token validator.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

// RequireAuth validates the Authorization header and injects the principal
// (user ID and role) into the request context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			userID, err := id.ParseUserID(claims.Subject)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithRole(ctx, parseRole(claims.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin principals. Mount after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.PrincipalRole(r.Context()) != requestcontext.RoleAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseRole(role string) requestcontext.Role {
	if role == string(requestcontext.RoleAdmin) {
		return requestcontext.RoleAdmin
	}
	return requestcontext.RoleUser
}
