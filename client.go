package sleuth

import (
	"time"

	shttp "github.com/jichu20/sleuth-go/pkg/http"
	"github.com/jichu20/sleuth-go/tracing"
	"google.golang.org/grpc"
)

const defaultTimeout = 10 * time.Second

// NewClient returns an HTTP client whose calls carry the trace headers of
// the request context and are logged. opts are applied after the defaults.
func NewClient(opts ...shttp.Option) *shttp.Client {
	return shttp.NewClient(append([]shttp.Option{shttp.WithTimeout(defaultTimeout)}, opts...)...)
}

// UnaryClientOption installs client spans and header propagation on a gRPC
// connection.
func UnaryClientOption(opts ...tracing.Option) grpc.DialOption {
	return grpc.WithChainUnaryInterceptor(tracing.UnaryClientInterceptor(opts...))
}
