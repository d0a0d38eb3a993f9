package logging

import (
	"context"

	"go.viam.com/utils"
)

type traceKeyType int

const traceKeyID = traceKeyType(iota)

// WithTrace returns a context under which CDebugf logs whatever the logger level is. Every traced
// message carries key in its "trace" field. An empty key generates a random value.
func WithTrace(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, traceKeyID, key)
}

// TraceKey returns the key the context is traced under, or "" when it is not traced.
func TraceKey(ctx context.Context) string {
	if key, ok := ctx.Value(traceKeyID).(string); ok {
		return key
	}
	return ""
}
