package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the console session id in context.
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, id)
}

// SessionFromContext extracts the console session id from context.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey{}).(string)
	return id
}
