package tracing

import (
	"fmt"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/jichu20/sleuth-go/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Server returns a new server middleware for OpenTelemetry.
// It extracts the caller's span context, starts a server span and stores it
// on the request context.
func Server(opts ...Option) func(http.Handler) http.Handler {
	tracer := NewTracer(trace.SpanKindServer, opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, propagation.HeaderCarrier(r.Header))
			span.SetAttributes(attribute.String("localComponent", "http"))
			remoteIP, remotePort := util.ParseAddr(r.RemoteAddr)
			span.SetAttributes(attribute.String("peer.ip", remoteIP))
			span.SetAttributes(attribute.Int64("peer.port", int64(remotePort)))
			span.SetAttributes(attribute.String("http.method", r.Method))
			span.SetAttributes(attribute.String("http.path", r.URL.Path))
			ctx = meta.WithSys(ctx,
				meta.SysPair{Key: meta.ServiceName, Value: tracer.opt.service()},
				meta.SysPair{Key: meta.Interface, Value: r.URL.Path},
			)

			defer func() {
				if p := recover(); p != nil {
					tracer.End(ctx, span, http.StatusInternalServerError, fmt.Errorf("panic: %v", p))
					panic(p)
				}
			}()
			m := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))
			tracer.End(ctx, span, m.Code, nil)
		})
	}
}

type transport struct {
	base   http.RoundTripper
	tracer *Tracer
}

// Transport returns a round tripper that starts a client span for every
// call and injects it, with the extra fields of the request context, into
// the outgoing headers. The caller's request is never modified.
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, tracer: NewTracer(trace.SpanKindClient, opts...)}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	ctx, span := t.tracer.Start(r.Context(), r.Method+" "+r.URL.Path, propagation.HeaderCarrier(r.Header))
	r = r.WithContext(ctx)

	span.SetAttributes(attribute.String("remoteComponent", "http"))
	remoteIP, remotePort := util.ParseAddr(r.URL.Host)
	span.SetAttributes(attribute.String("peer.ip", remoteIP))
	span.SetAttributes(attribute.Int64("peer.port", int64(remotePort)))
	span.SetAttributes(attribute.String("http.method", r.Method))
	span.SetAttributes(attribute.String("http.path", r.URL.Path))
	if localAPI, ok := meta.Sys(ctx, meta.Interface).(string); ok {
		span.SetAttributes(attribute.String("localInterface", localAPI))
	}

	resp, err := t.base.RoundTrip(r)
	var code int
	if resp != nil {
		code = resp.StatusCode
	}
	t.tracer.End(ctx, span, code, err)
	return resp, err
}
