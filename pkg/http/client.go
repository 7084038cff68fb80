package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/jichu20/sleuth-go/tracing"
)

type Client struct {
	cli *http.Client
}

type options struct {
	timeout         time.Duration
	maxConnsPerHost int
	base            http.RoundTripper
	tracing         []tracing.Option
	logging         []LoggingOption
}

// Option configures how we set up the client.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies Options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithTimeout returns a Option that configures a timeout for the whole call.
func WithTimeout(timeout time.Duration) Option {
	return newFuncOption(func(o *options) {
		o.timeout = timeout
	})
}

// WithMaxConnPerHost returns a Option that configures a maxConnsPerHost for dialing a ClientConn initially.
func WithMaxConnPerHost(max int) Option {
	return newFuncOption(func(o *options) {
		o.maxConnsPerHost = max
	})
}

// WithBaseTransport replaces the network transport under the tracing and
// logging round trippers.
func WithBaseTransport(rt http.RoundTripper) Option {
	return newFuncOption(func(o *options) {
		o.base = rt
	})
}

// WithTracing passes options to the client span round tripper.
func WithTracing(opts ...tracing.Option) Option {
	return newFuncOption(func(o *options) {
		o.tracing = append(o.tracing, opts...)
	})
}

// WithLogging passes options to the request/response logging round tripper.
func WithLogging(opts ...LoggingOption) Option {
	return newFuncOption(func(o *options) {
		o.logging = append(o.logging, opts...)
	})
}

// NewClient returns a client whose calls start a client span, carry the
// trace headers of ctx and are logged.
func NewClient(optFunc ...Option) *Client {
	opts := &options{}
	for _, f := range optFunc {
		f.apply(opts)
	}
	base := opts.base
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   6 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConnsPerHost:   6,
			MaxConnsPerHost:       opts.maxConnsPerHost,
		}
	}
	return &Client{cli: &http.Client{
		Timeout:   opts.timeout,
		Transport: tracing.Transport(LoggingTransport(base, opts.logging...), opts.tracing...),
	}}
}

// HTTPClient exposes the underlying client for callers building requests themselves.
func (c *Client) HTTPClient() *http.Client {
	return c.cli
}

// Get http get
func (c *Client) Get(ctx context.Context, url string, respBody interface{}) (header http.Header, err error) {
	header, err = c.Do(ctx, http.MethodGet, url, nil, respBody)
	return
}

// Put http put
func (c *Client) Put(ctx context.Context, url string, reqBody interface{}, respBody interface{}) (err error) {
	_, err = c.Do(ctx, http.MethodPut, url, reqBody, respBody)
	return
}

// Post http post
func (c *Client) Post(ctx context.Context, url string, reqBody interface{}, respBody interface{}) (err error) {
	_, err = c.Do(ctx, http.MethodPost, url, reqBody, respBody)
	return
}

// Do sends reqBody as JSON and decodes a 2xx JSON reply into respBody.
// Other status codes are returned as kratos errors carrying the code.
func (c *Client) Do(ctx context.Context, method string, url string, reqBody interface{}, respBody interface{}) (header http.Header, err error) {
	var (
		resp    *http.Response
		content []byte
		body    io.Reader
		req     *http.Request
	)
	if reqBody != nil {
		content, err = json.Marshal(reqBody)
		if err != nil {
			return
		}
		body = bytes.NewReader(content)
	}
	req, err = http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err = c.cli.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	header = resp.Header
	content, err = io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = errors.Newf(resp.StatusCode, errors.UnknownReason, "%s", content)
		return
	}
	if respBody != nil && len(content) > 0 {
		err = json.Unmarshal(content, respBody)
	}
	return
}
