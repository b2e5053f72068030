package domain

import (
	"context"
	"time"
)

// Claims is the verified content of a bearer token. Roles are the snapshot
// taken when the token was issued.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	Roles     []Role
}

type claimsKey struct{}

// ContextWithClaims returns a copy of ctx carrying c.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims attached by the authentication
// middleware, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
