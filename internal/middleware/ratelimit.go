package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/httputil"
	"github.com/pacetrack/gateway/internal/logging"
	"github.com/pacetrack/gateway/internal/metrics"
	"github.com/pacetrack/gateway/internal/ratelimit"
	"github.com/pacetrack/gateway/internal/trust"
)

// Limiter is the distributed admission controller. Every decision is one
// atomic increment against the shared counter store; the store, not any
// gateway instance, is authoritative for window counts.
type Limiter struct {
	store   ratelimit.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewLimiter creates an admission controller over the given store.
func NewLimiter(store ratelimit.Store, logger *logging.Logger, m *metrics.Metrics) *Limiter {
	return &Limiter{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Middleware builds the admission middleware for one profile. authenticated
// states whether the auth gate runs ahead of this middleware on the route; a
// user-keyed profile on an unauthenticated route is a configuration error
// and is rejected here, at setup time, rather than falling back to the
// caller's address.
func (l *Limiter) Middleware(profile ratelimit.Profile, authenticated bool) (mux.MiddlewareFunc, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if profile.KeyType == ratelimit.KeyTypeUser && !authenticated {
		return nil, fmt.Errorf("profile %s: user-keyed limiter requires authentication on the route", profile.Name)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := l.deriveKey(profile, r)
			if err != nil {
				l.logger.WithContext(r.Context()).WithError(err).Error("Admission key derivation failed")
				httputil.WriteError(w, err)
				return
			}

			count, ttl, err := l.store.Incr(r.Context(), key, profile.Window())
			if err != nil {
				// Fail closed: an unreachable counter store denies rather
				// than waving traffic through unmetered.
				l.record(profile.Name, "store_error")
				l.logger.WithContext(r.Context()).WithError(err).Error("Counter store unreachable, denying request")
				httputil.WriteError(w, errors.RateLimited(profile.Message, retryAfterSeconds(profile.Window())))
				return
			}

			if count > int64(profile.Max) {
				// The denied request's increment stands; that is the
				// fixed-window algorithm, not an accounting bug.
				l.record(profile.Name, "denied")
				l.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
					"profile": profile.Name,
					"key":     key,
					"count":   count,
				})
				if ttl <= 0 {
					ttl = profile.Window()
				}
				httputil.WriteError(w, errors.RateLimited(profile.Message, retryAfterSeconds(ttl)))
				return
			}

			l.record(profile.Name, "allowed")
			next.ServeHTTP(w, r)
		})
	}, nil
}

// deriveKey builds the counter key for this request.
func (l *Limiter) deriveKey(profile ratelimit.Profile, r *http.Request) (string, error) {
	switch profile.KeyType {
	case ratelimit.KeyTypeUser:
		tc, ok := trust.FromContext(r.Context())
		if !ok || tc.CallerID == "" {
			// Setup-time validation makes this unreachable; reaching it
			// means a route was wired outside the route table.
			return "", errors.Internal("user-keyed limiter ran without a verified caller", nil)
		}
		return "rl:" + profile.Name + ":user:" + tc.CallerID, nil
	default:
		return "rl:" + profile.Name + ":ip:" + clientIP(r), nil
	}
}

func (l *Limiter) record(profile, outcome string) {
	if l.metrics != nil {
		l.metrics.RecordAdmission(profile, outcome)
	}
}

// clientIP extracts the caller's network address. Address-keyed quotas
// assume the gateway terminates client connections directly.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds converts a window remainder to a whole-second
// Retry-After value, rounding up so callers never retry early.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
