// Package info serves the service description read by operators and
// deployment tooling.
package info

import (
	"encoding/json"
	"net/http"

	"github.com/jichu20/sleuth-go/log"
	"github.com/jichu20/sleuth-go/pkg/sys/env"
	"github.com/jichu20/sleuth-go/pkg/version"
)

// Path is where the example services mount Handler.
const Path = "/actuator/info"

type BuildInfo struct {
	Commit   string `json:"commit"`
	ReportID string `json:"uuid"`
	Date     string `json:"date"`
	Version  string `json:"version"`
}

type DeployInfo struct {
	Region string `json:"region"`
}

type Details struct {
	BuildInfo  BuildInfo  `json:"buildInfo"`
	DeployInfo DeployInfo `json:"deployInfo"`
}

type Info struct {
	ServiceName string  `json:"serviceName"`
	Info        Details `json:"info"`
}

// Option configures Handler.
type Option func(*options)

type options struct {
	serviceName string
}

// WithServiceName sets the reported name; it defaults to sleuth_service_name.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// Current describes the running process.
func Current() Info {
	return current(env.ServiceName())
}

func current(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Info: Details{
			BuildInfo: BuildInfo{
				Commit:   version.Commit,
				ReportID: version.ReportID,
				Date:     version.Date,
				Version:  version.Version,
			},
			DeployInfo: DeployInfo{Region: env.Region()},
		},
	}
}

// Handler answers GET requests with the JSON encoding of Current.
func Handler(opts ...Option) http.Handler {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		info := Current()
		if o.serviceName != "" {
			info = current(o.serviceName)
		}
		if err := json.NewEncoder(w).Encode(info); err != nil {
			log.DefaultLog.WithContext(r.Context()).Errorw("msg", "encode info failed", "err", err)
		}
	})
}
