// Package identity is the boundary to the external identity provider: it
// sends magic-link emails and resolves bearer credentials to owner ids.
package identity

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the magic-link sender when no identity
// provider is configured.
var ErrUnavailable = errors.New("identity provider not configured")

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying the authenticated owner id.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner id stored by WithOwner, or "".
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
