package session

import "context"

type recordContextKey struct{}

// ContextWithRecord stores the session record in context. The gate places
// the resolved session here so handlers receive an explicit value; there
// is no ambient session lookup anywhere else.
func ContextWithRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext extracts the session record from context.
func RecordFromContext(ctx context.Context) *Record {
	rec, _ := ctx.Value(recordContextKey{}).(*Record)
	return rec
}
