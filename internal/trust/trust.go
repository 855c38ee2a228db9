// Package trust carries the verified caller identity through a request's
// context and defines the internal headers used to propagate it downstream.
package trust

import "context"

const (
	// TokenHeader is the inbound header carrying the caller's bearer token.
	TokenHeader = "token"

	// UserIDHeader is the internal header carrying the verified caller id.
	// It is set by the gateway on downstream calls and must never be
	// accepted as caller-supplied input.
	UserIDHeader = "user-id"

	// RoleIDHeader is the internal header carrying the verified role id.
	RoleIDHeader = "id-role"
)

// Context is the verified identity attached to a request after the auth
// gate runs. It lives only for the request's lifetime: never persisted,
// never shared across requests.
type Context struct {
	CallerID string
	RoleID   string
	Token    string
}

type contextKey struct{}

// NewContext returns a context carrying tc.
func NewContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the trust context, if present.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok
}
