package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	sleuthlog "github.com/jichu20/sleuth-go/log"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTransport(base http.RoundTripper, level zapcore.Level) (http.RoundTripper, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	l := sleuthlog.New(sleuthlog.WithCore(core))
	return LoggingTransport(base, WithLogger(sleuthlog.WithTrace(l)), WithLevelEnabler(l.Enabled)), logs
}

func bookServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoggingJSONBodies(t *testing.T) {
	var received string
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"name":"elbarcodelpirata"}`)
	})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.InfoLevel)

	ctx := meta.WithTraceID(context.Background(), "abc-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/book", strings.NewReader(`{"numPages":2}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"elbarcodelpirata"}`, string(body))
	assert.Equal(t, `{"numPages":2}`, received)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	reqEntry := entries[0].ContextMap()
	assert.Equal(t, "request begin", entries[0].Message)
	assert.Equal(t, srv.URL+"/book", reqEntry["uri"])
	assert.Equal(t, http.MethodPost, reqEntry["method"])
	assert.Equal(t, `{"numPages":2}`, reqEntry["body"])
	assert.Equal(t, "abc-123", reqEntry[meta.XTraceID])

	respEntry := entries[1].ContextMap()
	assert.Equal(t, "response begin", entries[1].Message)
	assert.EqualValues(t, http.StatusAccepted, respEntry["status_code"])
	assert.Equal(t, "Accepted", respEntry["status_text"])
	assert.Equal(t, `{"name":"elbarcodelpirata"}`, respEntry["body"])
	assert.Equal(t, "abc-123", respEntry[meta.XTraceID])
}

func TestLoggingEmptyRequestBody(t *testing.T) {
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.InfoLevel)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	entries := logs.FilterMessage("request begin").AllUntimed()
	require.Len(t, entries, 1)
	_, ok := entries[0].ContextMap()["body"]
	assert.False(t, ok)
}

func TestLoggingSkipsContentDisposition(t *testing.T) {
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", `attachment; filename="book.txt"`)
		io.WriteString(w, "chapter one")
	})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.InfoLevel)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "chapter one", string(body))

	entries := logs.FilterMessage("response begin").AllUntimed()
	require.Len(t, entries, 1)
	_, ok := entries[0].ContextMap()["body"]
	assert.False(t, ok)
}

func TestLoggingSkipsBinaryBodies(t *testing.T) {
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x1, 0x2})
	})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.InfoLevel)

	req, _ := http.NewRequest(http.MethodPut, srv.URL, strings.NewReader("raw"))
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	for _, e := range logs.AllUntimed() {
		_, ok := e.ContextMap()["body"]
		assert.False(t, ok, e.Message)
	}
}

func TestLoggingDisabled(t *testing.T) {
	var received string
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = string(b)
	})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.WarnLevel)

	req, _ := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("hello")))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "hello", received)
	assert.Equal(t, 0, logs.Len())
}

func TestLoggingReplaysOpaqueRequestBody(t *testing.T) {
	var received string
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received = string(b)
	})
	rt, logs := newObservedTransport(http.DefaultTransport, zapcore.InfoLevel)

	// NopCloser hides the reader type, so GetBody is not set
	req, _ := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("hello")))
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	require.Nil(t, req.GetBody)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "hello", received)
	assert.Equal(t, "hello", logs.FilterMessage("request begin").AllUntimed()[0].ContextMap()["body"])
}

type failingTransport struct{ err error }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, f.err
}

func TestLoggingPropagatesErrors(t *testing.T) {
	want := errors.New("dial tcp: connection refused")
	rt, logs := newObservedTransport(failingTransport{err: want}, zapcore.InfoLevel)

	req, _ := http.NewRequest(http.MethodGet, "http://localhost:8081/book/x", nil)
	resp, err := rt.RoundTrip(req)
	assert.Nil(t, resp)
	assert.Same(t, want, err)
	assert.Equal(t, 1, logs.FilterMessage("request begin").Len())
	assert.Equal(t, 0, logs.FilterMessage("response begin").Len())
}

func TestLoggingDefaults(t *testing.T) {
	rt := LoggingTransport(nil).(*loggingTransport)
	assert.Equal(t, http.DefaultTransport, rt.base)
	assert.Equal(t, sleuthlog.Enabled(log.LevelInfo), rt.enabled(log.LevelInfo))
}

func TestLoggingFollowsInjectedLogger(t *testing.T) {
	sleuthlog.Init(sleuthlog.WithLevel(log.LevelError))
	t.Cleanup(func() { sleuthlog.Init() })
	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for name, wrap := range map[string]func(*sleuthlog.Logger) log.Logger{
		"logger":     func(l *sleuthlog.Logger) log.Logger { return l },
		"with trace": func(l *sleuthlog.Logger) log.Logger { return sleuthlog.WithTrace(l) },
	} {
		core, logs := observer.New(zapcore.InfoLevel)
		rt := LoggingTransport(http.DefaultTransport, WithLogger(wrap(sleuthlog.New(sleuthlog.WithCore(core)))))

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/book", nil)
		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, 1, logs.FilterMessage("request begin").Len(), name)
		assert.Equal(t, 1, logs.FilterMessage("response begin").Len(), name)
	}
}

func TestLoggingInjectedLoggerDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rt := LoggingTransport(http.DefaultTransport, WithLogger(sleuthlog.New(sleuthlog.WithCore(core)))).(*loggingTransport)
	assert.False(t, rt.enabled(log.LevelInfo))

	srv := bookServer(t, func(w http.ResponseWriter, r *http.Request) {})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 0, logs.Len())
}
