package engine

import "context"

type scopeKey struct{}

type syncEntryKey struct{}

// MarkSyncEntry flags ctx as coming from a blocking entry point. A workflow
// started from such a context while another execution is already running
// fails with core.ErrNestedExecution.
func MarkSyncEntry(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncEntryKey{}, true)
}

// ClearSyncEntry removes the blocking entry flag; internal child calls use it.
func ClearSyncEntry(ctx context.Context) context.Context {
	if !IsSyncEntry(ctx) {
		return ctx
	}
	return context.WithValue(ctx, syncEntryKey{}, false)
}

// IsSyncEntry reports whether ctx was marked by MarkSyncEntry.
func IsSyncEntry(ctx context.Context) bool {
	v, _ := ctx.Value(syncEntryKey{}).(bool)
	return v
}

// InScope reports whether ctx belongs to a running execution.
func InScope(ctx context.Context) bool {
	v, _ := ctx.Value(scopeKey{}).(bool)
	return v
}

func withScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, true)
}
