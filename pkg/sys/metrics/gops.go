package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/gops/agent"
	"github.com/jichu20/sleuth-go/log"
	"github.com/jichu20/sleuth-go/pkg/sys/env"
	"golang.org/x/sync/errgroup"
)

var _ transport.Server = (*Agent)(nil)

// Option configures an Agent.
type Option func(*Agent)

// WithGopsAddr sets the gops listen address; empty disables gops.
func WithGopsAddr(addr string) Option {
	return func(a *Agent) {
		a.gopsAddr = addr
	}
}

// WithPprofAddr sets the pprof listen address; empty disables pprof.
func WithPprofAddr(addr string) Option {
	return func(a *Agent) {
		a.pprofAddr = addr
	}
}

// Agent serves the gops agent and the pprof endpoints next to the service.
// Listen failures are logged and never stop the service.
type Agent struct {
	gopsAddr  string
	pprofAddr string
	pprof     *http.Server

	mu   sync.Mutex
	gops bool
}

// NewAgent builds an agent from the sleuth_disable_gops, sleuth_gops_port,
// sleuth_disable_pprof and sleuth_pprof_port flags.
func NewAgent(opts ...Option) *Agent {
	a := &Agent{}
	if !env.DisableGops() {
		a.gopsAddr = fmt.Sprintf(":%d", env.GopsPort())
	}
	if !env.DisablePprof() {
		a.pprofAddr = fmt.Sprintf(":%d", env.PprofPort())
	}
	for _, o := range opts {
		o(a)
	}
	if a.pprofAddr != "" {
		a.pprof = &http.Server{Addr: a.pprofAddr, Handler: pprofHandler()}
	}
	return a
}

func pprofHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start blocks until the pprof server is shut down.
func (a *Agent) Start(ctx context.Context) error {
	var eg errgroup.Group
	if a.gopsAddr != "" {
		eg.Go(a.startGops)
	}
	if a.pprof != nil {
		eg.Go(a.servePprof)
	}
	return eg.Wait()
}

// Stop closes the gops agent and shuts the pprof server down.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.gops {
		agent.Close()
		a.gops = false
	}
	a.mu.Unlock()
	if a.pprof != nil {
		return a.pprof.Shutdown(ctx)
	}
	return nil
}

func (a *Agent) servePprof() error {
	lis, err := net.Listen("tcp", a.pprofAddr)
	if err != nil {
		log.DefaultLog.Errorf("pprof server listen %s err: %v", a.pprofAddr, err)
		return nil
	}
	log.DefaultLog.Debugw("msg", "pprof http server start serve. To disable it,set sleuth_disable_pprof=true", "addr", a.pprofAddr)
	if err = a.pprof.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.DefaultLog.Errorf("pprof server serve err: %v", err)
	}
	return nil
}

func (a *Agent) startGops() error {
	log.DefaultLog.Debugw("msg", "gops agent start serve. To disable it,set sleuth_disable_gops=true", "addr", a.gopsAddr)
	if err := agent.Listen(agent.Options{Addr: a.gopsAddr}); err != nil {
		log.DefaultLog.Errorf("gops agent.Listen %s err: %v", a.gopsAddr, err)
		return nil
	}
	a.mu.Lock()
	a.gops = true
	a.mu.Unlock()
	return nil
}
