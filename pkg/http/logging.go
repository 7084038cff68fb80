package http

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	sleuthlog "github.com/jichu20/sleuth-go/log"
)

// LoggingOption configures LoggingTransport.
type LoggingOption func(*loggingOptions)

type loggingOptions struct {
	logger  log.Logger
	enabled func(log.Level) bool
}

// WithLogger sets the logger receiving request and response entries.
func WithLogger(logger log.Logger) LoggingOption {
	return func(o *loggingOptions) {
		o.logger = logger
	}
}

// WithLevelEnabler sets the check deciding whether info entries are written.
// Nothing is read or buffered when it reports false. Without it the check is
// the one of the logger when it has an Enabled method, or the process level
// for the default logger; other loggers see every entry.
func WithLevelEnabler(enabled func(log.Level) bool) LoggingOption {
	return func(o *loggingOptions) {
		o.enabled = enabled
	}
}

type loggingTransport struct {
	base    http.RoundTripper
	log     *log.Helper
	enabled func(log.Level) bool
}

// LoggingTransport logs every outgoing request and its response at info
// level. Bodies are logged only for text/plain and application/json
// payloads, and response bodies never when a Content-Disposition header is
// present. Headers and bodies reach base and the caller unchanged.
func LoggingTransport(base http.RoundTripper, opts ...LoggingOption) http.RoundTripper {
	o := loggingOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = sleuthlog.DefaultLogger
		if o.enabled == nil {
			o.enabled = sleuthlog.Enabled
		}
	}
	if o.enabled == nil {
		o.enabled = levelEnabler(o.logger)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, log: log.NewHelper(o.logger), enabled: o.enabled}
}

func levelEnabler(logger log.Logger) func(log.Level) bool {
	if l, ok := logger.(interface{ Enabled(log.Level) bool }); ok {
		return l.Enabled
	}
	return func(log.Level) bool { return true }
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.enabled(log.LevelInfo) {
		return t.base.RoundTrip(req)
	}
	req = t.logRequest(req)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	t.logResponse(req, resp)
	return resp, nil
}

func (t *loggingTransport) logRequest(req *http.Request) *http.Request {
	kv := []interface{}{
		log.DefaultMessageKey, "request begin",
		"uri", req.URL.String(),
		"method", req.Method,
		"headers", req.Header,
	}
	if isLoggable(req.Header) {
		var (
			body []byte
			err  error
		)
		body, req, err = peekRequestBody(req)
		if err != nil {
			kv = append(kv, "body_error", err.Error())
		}
		if len(body) > 0 {
			kv = append(kv, "body", string(body))
		}
	}
	t.log.WithContext(req.Context()).Infow(kv...)
	return req
}

func (t *loggingTransport) logResponse(req *http.Request, resp *http.Response) {
	kv := []interface{}{
		log.DefaultMessageKey, "response begin",
		"status_code", resp.StatusCode,
		"status_text", statusText(resp),
		"headers", resp.Header,
	}
	if isLoggable(resp.Header) && resp.Header.Get("Content-Disposition") == "" && resp.Body != nil && resp.Body != http.NoBody {
		body, err := io.ReadAll(resp.Body)
		resp.Body = &replayBody{Reader: replay(body, err), Closer: resp.Body}
		if err != nil {
			kv = append(kv, "body_error", err.Error())
		}
		kv = append(kv, "body", string(body))
	}
	t.log.WithContext(req.Context()).Infow(kv...)
}

// peekRequestBody returns the request payload together with a request that
// still carries the full payload for the next round tripper.
func peekRequestBody(req *http.Request) ([]byte, *http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, req, nil
	}
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, req, err
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		return body, req, err
	}
	body, err := io.ReadAll(req.Body)
	r := req.Clone(req.Context())
	r.Body = &replayBody{Reader: replay(body, err), Closer: req.Body}
	return body, r, err
}

func isLoggable(h http.Header) bool {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "text/plain" || mt == "application/json"
}

func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

type replayBody struct {
	io.Reader
	io.Closer
}

// replay yields buf and then the error that interrupted reading it.
func replay(buf []byte, err error) io.Reader {
	if err == nil {
		return bytes.NewReader(buf)
	}
	return io.MultiReader(bytes.NewReader(buf), errReader{err: err})
}

type errReader struct {
	err error
}

func (e errReader) Read([]byte) (int, error) {
	return 0, e.err
}
