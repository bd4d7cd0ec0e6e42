package auth

import "context"

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal stores a resolved principal in the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal stored by the authentication
// middleware, or nil when the request never passed authentication.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
