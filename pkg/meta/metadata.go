package meta

import "context"

type sysKey struct{}

// SysMeta is request scoped metadata carried on a context.
type SysMeta map[string]interface{}

type SysPair struct {
	Key   string
	Value interface{}
}

// WithSys returns a copy of ctx holding pairs on top of the metadata already
// present. The parent's map is never mutated, so contexts of concurrent
// requests stay isolated.
func WithSys(ctx context.Context, pairs ...SysPair) context.Context {
	origin, _ := ctx.Value(sysKey{}).(SysMeta)
	copied := make(SysMeta, len(origin)+len(pairs))
	for k, v := range origin {
		copied[k] = v
	}
	for _, pair := range pairs {
		copied[pair.Key] = pair.Value
	}
	return context.WithValue(ctx, sysKey{}, copied)
}

func RangeSys(ctx context.Context, f func(key string, value interface{})) {
	origin, ok := ctx.Value(sysKey{}).(SysMeta)
	if !ok || origin == nil {
		return
	}
	for k, v := range origin {
		f(k, v)
	}
}

func Sys(ctx context.Context, key string) (res interface{}) {
	if ctx == nil {
		return
	}
	origin, ok := ctx.Value(sysKey{}).(SysMeta)
	if !ok || origin == nil {
		return
	}
	res = origin[key]
	return
}

// WithExtra attaches an extra propagation field to ctx. Extra fields are
// written as raw headers on every outbound call made with ctx.
func WithExtra(ctx context.Context, field string, value string) context.Context {
	return WithSys(ctx, SysPair{Key: ExtraKey(field), Value: value})
}

// Extra returns the value of the extra propagation field, or "".
func Extra(ctx context.Context, field string) string {
	v, _ := Sys(ctx, ExtraKey(field)).(string)
	return v
}

// WithTraceID binds the trace identifier to the log context of ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return WithSys(ctx, SysPair{Key: XTraceID, Value: traceID})
}

// TraceID returns the trace identifier bound to the log context, or "".
func TraceID(ctx context.Context) string {
	v, _ := Sys(ctx, XTraceID).(string)
	return v
}
