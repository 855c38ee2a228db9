// Package middleware provides the gateway's HTTP middleware: the auth gate,
// the admission controller, CORS and tracing.
package middleware

import (
	"context"
	"net/http"

	"github.com/pacetrack/gateway/internal/clients/identity"
	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/httputil"
	"github.com/pacetrack/gateway/internal/logging"
	"github.com/pacetrack/gateway/internal/trust"
)

// TokenValidator resolves a caller token to a verified identity. It returns
// (nil, nil) when the identity service rejected the token, and an error only
// when validation itself could not be performed.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*identity.VerifiedUser, error)
}

// AuthGate authenticates every protected request by delegating token
// validation to the identity service. It holds no state between requests
// and caches nothing: each request re-validates its token, trading latency
// for immediate revocation.
type AuthGate struct {
	validator TokenValidator
	logger    *logging.Logger
}

// NewAuthGate creates an auth gate over the given validator.
func NewAuthGate(validator TokenValidator, logger *logging.Logger) *AuthGate {
	return &AuthGate{
		validator: validator,
		logger:    logger,
	}
}

// Handler returns the auth-gate middleware handler.
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The internal identity headers are set by the gateway after
		// verification; a caller supplying them directly is overwritten.
		r.Header.Del(trust.UserIDHeader)
		r.Header.Del(trust.RoleIDHeader)

		token := r.Header.Get(trust.TokenHeader)
		if token == "" {
			g.logger.LogSecurityEvent(r.Context(), "missing_credential", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			httputil.WriteError(w, errors.MissingCredential())
			return
		}

		user, err := g.validator.ValidateToken(r.Context(), token)
		if err != nil {
			g.logger.WithContext(r.Context()).WithError(err).Warn("Token validation unavailable")
			httputil.WriteError(w, err)
			return
		}
		if user == nil {
			g.logger.LogSecurityEvent(r.Context(), "invalid_credential", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			httputil.WriteError(w, errors.InvalidCredential())
			return
		}

		tc := trust.Context{
			CallerID: user.ID.String(),
			RoleID:   user.RoleID.String(),
			Token:    token,
		}

		ctx := trust.NewContext(r.Context(), tc)
		ctx = logging.WithUserID(ctx, tc.CallerID)
		ctx = logging.WithRole(ctx, tc.RoleID)

		g.logger.WithContext(ctx).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
