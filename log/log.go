package log

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/jichu20/sleuth-go/pkg/sys/env"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = New()

	// DefaultLogger is the process logger with the trace identifier bound.
	DefaultLogger log.Logger = WithTrace(base)
	// DefaultLog is default sleuth logger
	DefaultLog *log.Helper = log.NewHelper(DefaultLogger)
)

// Init rebuilds the default loggers from the parsed flags.
// Call it at startup, after env.Parse and before serving: components built
// earlier keep the logger they captured.
func Init(opts ...Option) {
	l := New(opts...)
	mu.Lock()
	defer mu.Unlock()
	base = l
	DefaultLogger = WithTrace(l)
	DefaultLog = log.NewHelper(DefaultLogger)
}

// Enabled reports whether the default logger writes entries at level.
func Enabled(level log.Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return base.Enabled(level)
}

// Sync flushes the default logger.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	core     zapcore.Core
	level    log.Level
	path     string
	encoding string
}

// WithCore replaces the zap core built from path and encoding.
func WithCore(core zapcore.Core) Option {
	return func(o *options) {
		o.core = core
	}
}

func WithLevel(level log.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithPath sets the output: "stdout", "stderr" or a file rotated by lumberjack.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithEncoding sets the zap encoding, "console" or "json".
func WithEncoding(encoding string) Option {
	return func(o *options) {
		o.encoding = encoding
	}
}

// Logger is a kratos log.Logger backed by zap.
type Logger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

var _ log.Logger = (*Logger)(nil)

// New builds a zap backed logger. Defaults come from the env package.
func New(opts ...Option) *Logger {
	o := options{
		level:    log.Level(env.LogLevel()),
		path:     env.LogPath(),
		encoding: env.LogEncoding(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	level := zap.NewAtomicLevelAt(zapLevel(o.level))
	core := o.core
	if core == nil {
		core = zapcore.NewCore(newEncoder(o.encoding), newWriter(o.path), level)
	}
	return &Logger{
		logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(3)),
		level:  level,
	}
}

func newEncoder(encoding string) zapcore.Encoder {
	config := zapcore.EncoderConfig{
		// Keys can be anything except the empty string.
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "json" {
		config.EncodeTime = zapcore.EpochNanosTimeEncoder
		return zapcore.NewJSONEncoder(config)
	}
	return zapcore.NewConsoleEncoder(config)
}

func newWriter(path string) zapcore.WriteSyncer {
	switch path {
	case "stdout", "std", "":
		return zapcore.Lock(os.Stdout)
	case "stderr":
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 10,
		MaxAge:     10, // days
	})
}

func zapLevel(level log.Level) zapcore.Level {
	switch level {
	case log.LevelDebug:
		return zapcore.DebugLevel
	case log.LevelWarn:
		return zapcore.WarnLevel
	case log.LevelError:
		return zapcore.ErrorLevel
	case log.LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log print the kv pairs log.
func (l *Logger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}
	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		// no trace identifier outside a request
		if key == meta.XTraceID && keyvals[i+1] == "" {
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	switch level {
	case log.LevelDebug:
		l.logger.Debug(msg, fields...)
	case log.LevelInfo:
		l.logger.Info(msg, fields...)
	case log.LevelWarn:
		l.logger.Warn(msg, fields...)
	case log.LevelError:
		l.logger.Error(msg, fields...)
	case log.LevelFatal:
		l.logger.Fatal(msg, fields...)
	}
	return nil
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level log.Level) bool {
	return l.logger.Core().Enabled(zapLevel(level))
}

func (l *Logger) SetLevel(level log.Level) {
	l.level.SetLevel(zapLevel(level))
}

func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// WithTrace binds the trace identifier of the logging context to every
// entry written through the returned logger.
func WithTrace(l log.Logger) log.Logger {
	return log.With(l, meta.XTraceID, TraceID())
}

// TraceID returns a valuer reading the trace identifier bound to ctx.
func TraceID() log.Valuer {
	return func(ctx context.Context) interface{} {
		if ctx == nil {
			return ""
		}
		return meta.TraceID(ctx)
	}
}
