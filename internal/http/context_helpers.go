package httpx

import "context"

// tabIDKey is an unexported context key type to avoid collisions across packages.
type tabIDKey struct{}

// WithTabID returns a child context that carries the console tab id.
// If tabID is empty, the original ctx is returned unchanged.
func WithTabID(ctx context.Context, tabID string) context.Context {
	if tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabIDKey{}, tabID)
}

// TabIDFromContext returns the console tab id and whether one was set.
func TabIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tabIDKey{}).(string)
	return id, ok && id != ""
}
