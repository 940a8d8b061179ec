package shared

import "context"

type contextKey string

const (
	schoolContextKey contextKey = "school"
	actorContextKey  contextKey = "actor"
)

// Scope identifies the tenant and acting user for a request. The auth layer
// in front of this service resolves both; the engine only propagates them.
type Scope struct {
	SchoolID int64
	ActorID  int64
}

// ContextWithScope attaches the tenant scope to the context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, schoolContextKey, scope)
}

// ScopeFromContext extracts the tenant scope. The second value is false when
// the request bypassed the scope middleware.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(schoolContextKey).(Scope)
	return scope, ok
}
