package log

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return New(WithCore(core)), logs
}

func TestLogTraceFromContext(t *testing.T) {
	l, logs := newObserved(zapcore.InfoLevel)
	helper := log.NewHelper(WithTrace(l))

	ctx := meta.WithTraceID(context.Background(), "abc-123")
	helper.WithContext(ctx).Info("Hello Sleuth")
	helper.WithContext(context.Background()).Infow("msg", "no trace", "book", "elbarcodelpirata")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "Hello Sleuth", entries[0].Message)
	assert.Equal(t, "abc-123", entries[0].ContextMap()[meta.XTraceID])
	assert.Equal(t, "no trace", entries[1].Message)
	assert.NotContains(t, entries[1].ContextMap(), meta.XTraceID)
	assert.Equal(t, "elbarcodelpirata", entries[1].ContextMap()["book"])
}

func TestLogLevels(t *testing.T) {
	l, logs := newObserved(zapcore.WarnLevel)

	assert.False(t, l.Enabled(log.LevelInfo))
	assert.True(t, l.Enabled(log.LevelWarn))

	helper := log.NewHelper(l)
	helper.Info("dropped")
	helper.Warn("kept")
	helper.Error("kept too")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestLogUnpaired(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)

	assert.NoError(t, l.Log(log.LevelDebug, "msg", "odd", "key"))
	assert.NoError(t, l.Log(log.LevelInfo))

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "odd", entries[0].Message)
	assert.Equal(t, "KEYVALS UNPAIRED", entries[0].ContextMap()["key"])
}

func TestSetLevel(t *testing.T) {
	l := New(WithPath("stderr"), WithLevel(log.LevelError))
	assert.False(t, l.Enabled(log.LevelWarn))

	l.SetLevel(log.LevelDebug)
	assert.True(t, l.Enabled(log.LevelDebug))
}

func TestInitReplacesDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Init(WithCore(core))
	t.Cleanup(func() { Init() })

	assert.True(t, Enabled(log.LevelDebug))
	DefaultLog.WithContext(meta.WithTraceID(context.Background(), "abc-123")).Debug("after init")
	DefaultLog.Info("no request")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc-123", entries[0].ContextMap()[meta.XTraceID])
	assert.NotContains(t, entries[1].ContextMap(), meta.XTraceID)
	assert.NoError(t, Sync())
}
