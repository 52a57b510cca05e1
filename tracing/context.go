package tracing

import "context"

type runKey struct{}

type suppressKey struct{}

// ContextWithRun returns a copy of ctx whose current run is runID.
func ContextWithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// CurrentRunID returns the run that nested runs started from ctx attach to.
func CurrentRunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// Suppress disables tracing for every run started from the returned
// context and its descendants.
func Suppress(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey{}, true)
}

// Suppressed reports whether tracing is disabled for ctx.
func Suppressed(ctx context.Context) bool {
	s, _ := ctx.Value(suppressKey{}).(bool)
	return s
}
