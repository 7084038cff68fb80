package sleuth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/jichu20/sleuth-go/config"
	"github.com/jichu20/sleuth-go/log"
	"github.com/jichu20/sleuth-go/pkg/info"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/jichu20/sleuth-go/pkg/sys/env"
	"github.com/jichu20/sleuth-go/pkg/sys/metrics"
	"github.com/jichu20/sleuth-go/pkg/version"
	"github.com/jichu20/sleuth-go/tracing"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

// Init parses the sleuth flags, rebuilds the default logger from them and
// loads the config file. Call it first in main.
func Init() error {
	env.Parse()
	log.Init()
	if err := config.Init(); err != nil {
		return fmt.Errorf("init config: %w", err)
	}
	return nil
}

// Option is application option.
type Option func(*appOptions)

type appOptions struct {
	name        string
	addr        string
	handler     http.Handler
	timeout     time.Duration
	stopTimeout time.Duration
	diagnostics bool
	tracing     []tracing.Option
}

// Name sets the service name; it defaults to sleuth_service_name.
func Name(name string) Option {
	return func(o *appOptions) {
		o.name = name
	}
}

// Address sets the listen address; it defaults to sleuth_service_port.
func Address(addr string) Option {
	return func(o *appOptions) {
		o.addr = addr
	}
}

// Handler sets the handler serving every path but the info endpoint.
func Handler(h http.Handler) Option {
	return func(o *appOptions) {
		o.handler = h
	}
}

// Timeout bounds the context of every request.
func Timeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.timeout = d
	}
}

func StopTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.stopTimeout = d
	}
}

// Diagnostics toggles the gops and pprof agent.
func Diagnostics(enable bool) Option {
	return func(o *appOptions) {
		o.diagnostics = enable
	}
}

// Tracing passes options to the tracer provider installed by New.
func Tracing(opts ...tracing.Option) Option {
	return func(o *appOptions) {
		o.tracing = append(o.tracing, opts...)
	}
}

// App serves a handler next to the info endpoint and the diagnostics agent
// until SIGINT or SIGTERM, then shuts everything down gracefully.
type App struct {
	app         *kratos.App
	srv         *khttp.Server
	tp          *tracesdk.TracerProvider
	stopTimeout time.Duration
}

// New installs the global tracer provider and propagator and assembles the
// servers. Nothing listens before Run or Endpoint.
func New(opts ...Option) *App {
	o := appOptions{
		name:        env.ServiceName(),
		addr:        fmt.Sprintf(":%d", env.Port()),
		timeout:     30 * time.Second,
		stopTimeout: 5 * time.Second,
		diagnostics: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	// spans, logs and tracers built later without a name report this one
	env.SetServiceName(o.name)
	tp := tracing.SetProvider(append([]tracing.Option{tracing.WithServiceName(o.name)}, o.tracing...)...)

	mux := http.NewServeMux()
	mux.Handle(info.Path, info.Handler(info.WithServiceName(o.name)))
	if o.handler != nil {
		mux.Handle("/", o.handler)
	}
	srv := khttp.NewServer(khttp.Address(o.addr), khttp.Timeout(o.timeout))
	srv.HandlePrefix("/", mux)

	servers := []transport.Server{srv}
	if o.diagnostics {
		servers = append(servers, metrics.NewAgent())
	}
	app := kratos.New(
		kratos.Name(o.name),
		kratos.Version(version.Version),
		kratos.Metadata(map[string]string{
			meta.Region:   env.Region(),
			"sdk.version": version.GetHumanVersion(),
		}),
		kratos.Logger(log.DefaultLogger),
		kratos.StopTimeout(o.stopTimeout),
		kratos.Server(servers...),
	)
	return &App{app: app, srv: srv, tp: tp, stopTimeout: o.stopTimeout}
}

// Endpoint returns the URL the HTTP server listens on, listening first if
// needed.
func (a *App) Endpoint() (*url.URL, error) {
	return a.srv.Endpoint()
}

// Run blocks until the app is stopped, then flushes spans and logs.
func (a *App) Run() error {
	err := a.app.Run()
	ctx, cancel := context.WithTimeout(context.Background(), a.stopTimeout)
	defer cancel()
	if serr := a.tp.Shutdown(ctx); serr != nil {
		log.DefaultLog.Errorw("msg", "tracer provider shutdown failed", "err", serr)
	}
	_ = log.Sync()
	return err
}

// Stop asks a running app to shut down.
func (a *App) Stop() error {
	return a.app.Stop()
}
