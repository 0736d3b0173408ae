package shared

import "context"

// Principal identifies the authenticated API client and its company scope.
type Principal struct {
	KeyID     int64
	CompanyID int64
	Label     string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// CompanyFromContext returns the company scope, or zero when unauthenticated.
func CompanyFromContext(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.CompanyID
	}
	return 0
}
