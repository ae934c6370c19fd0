package mcpserver

import (
	"context"
	"encoding/json"
)

// notifyFunc sends a server-initiated notification over whichever
// transport originated the in-flight request, carrying streaming chunks
// per spec.md §4.9's "info channel" requirement.
type notifyFunc func(method string, params json.RawMessage)

type notifierContextKey struct{}

// WithNotifier attaches a notify function to ctx for the duration of one
// request, so handlers can forward streaming chunks without the transport
// and the handler layer needing to know about each other directly.
func WithNotifier(ctx context.Context, notify notifyFunc) context.Context {
	return context.WithValue(ctx, notifierContextKey{}, notify)
}

func notifierFromContext(ctx context.Context) (notifyFunc, bool) {
	notify, ok := ctx.Value(notifierContextKey{}).(notifyFunc)
	return notify, ok
}
