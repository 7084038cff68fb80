package sleuth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	sleuthlog "github.com/jichu20/sleuth-go/log"
	shttp "github.com/jichu20/sleuth-go/pkg/http"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/jichu20/sleuth-go/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// FilterOption configures TraceFilter and UnaryTraceFilter.
type FilterOption func(*filterOptions)

type filterOptions struct {
	provider  tracing.SpanProvider
	generator func() string
	logger    log.Logger
}

// WithSpanProvider sets where the active span of a request is looked up.
func WithSpanProvider(p tracing.SpanProvider) FilterOption {
	return func(o *filterOptions) {
		o.provider = p
	}
}

// WithGenerator sets the function minting identifiers for requests arriving
// without one.
func WithGenerator(g func() string) FilterOption {
	return func(o *filterOptions) {
		o.generator = g
	}
}

func WithLogger(logger log.Logger) FilterOption {
	return func(o *filterOptions) {
		o.logger = logger
	}
}

type traceFilter struct {
	provider  tracing.SpanProvider
	generator func() string
	log       *log.Helper
}

func newTraceFilter(opts []FilterOption) *traceFilter {
	o := filterOptions{
		provider:  tracing.ContextSpanProvider,
		generator: uuid.NewString,
		logger:    sleuthlog.DefaultLogger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &traceFilter{provider: o.provider, generator: o.generator, log: log.NewHelper(o.logger)}
}

// resolve picks the identifier of the request, minting one when inbound is
// blank, and returns ctx carrying it for propagation and logging.
func (f *traceFilter) resolve(ctx context.Context, span trace.Span, inbound string) (context.Context, string) {
	id := strings.TrimSpace(inbound)
	minted := id == ""
	if minted {
		id = f.generator()
	}
	ctx = meta.WithExtra(ctx, meta.XTraceID, id)
	ctx = meta.WithTraceID(ctx, id)
	span.SetAttributes(attribute.String(meta.XTraceID, id))
	if minted {
		f.log.WithContext(ctx).Debugw(log.DefaultMessageKey, "trace id minted")
	}
	return ctx, id
}

// TraceFilter makes sure every traced request carries an X-Trace-Id.
// The inbound header is reused, or a new identifier is minted when it is
// missing or blank. The identifier is echoed on the response, tagged on the
// active span, propagated on outbound calls made with the request context
// and bound to every log line written with it. Requests without an active
// span pass through untouched.
func TraceFilter(opts ...FilterOption) shttp.Middleware {
	f := newTraceFilter(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span, ok := f.provider.CurrentSpan(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx, id := f.resolve(r.Context(), span, r.Header.Get(meta.XTraceID))
			w.Header().Set(meta.XTraceID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UnaryTraceFilter is TraceFilter for gRPC unary calls. The identifier is
// read from the incoming metadata and sent back as a response header.
func UnaryTraceFilter(opts ...FilterOption) grpc.UnaryServerInterceptor {
	f := newTraceFilter(opts)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		span, ok := f.provider.CurrentSpan(ctx)
		if !ok {
			return handler(ctx, req)
		}
		var inbound string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			inbound = tracing.MetadataCarrier(md).Get(meta.XTraceID)
		}
		ctx, id := f.resolve(ctx, span, inbound)
		if err := grpc.SetHeader(ctx, metadata.Pairs(meta.XTraceID, id)); err != nil {
			f.log.WithContext(ctx).Debugw(log.DefaultMessageKey, "set trace id header failed", "method", info.FullMethod, "err", err)
		}
		return handler(ctx, req)
	}
}

// ServerMiddleware is the inbound pipeline of a service: server span first,
// then the trace filter.
func ServerMiddleware(opts ...FilterOption) shttp.Middleware {
	return shttp.Chain(tracing.Server(), TraceFilter(opts...))
}

// UnaryServerOption installs the gRPC counterpart of ServerMiddleware.
func UnaryServerOption(opts ...FilterOption) grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(tracing.UnaryServerInterceptor(), UnaryTraceFilter(opts...))
}
