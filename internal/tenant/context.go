package tenant

import "context"

type contextKey string

const tenantKey contextKey = "tenant"

// WithID stores the authenticated tenant on the request context.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, tenantKey, id)
}

// FromContext returns the tenant placed by the auth middleware.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(tenantKey).(ID)
	return id, ok && !id.IsZero()
}
