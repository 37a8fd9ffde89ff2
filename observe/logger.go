package observe

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// structuredLogger writes redacted, structured entries through zerolog.
type structuredLogger struct {
	zl zerolog.Logger
}

// zerolog's field formats are package globals; they are set once.
var configureZerolog = sync.OnceFunc(func() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = false
})

// NewLogger creates a new JSON logger on stderr with the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a new JSON logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewLoggerWithFormat(level, FormatJSON, w)
}

// NewLoggerWithFormat creates a logger writing either JSON lines or
// human-readable console output.
func NewLoggerWithFormat(level, format string, w io.Writer) Logger {
	configureZerolog()

	output := w
	if format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).With().Timestamp().Logger().Level(ParseLogLevel(level).zerolog())
	return &structuredLogger{zl: zl}
}

// WithBackend returns a logger that tags every entry with the backend name.
func (l *structuredLogger) WithBackend(name string) Logger {
	return &structuredLogger{zl: l.zl.With().Str("backend", name).Logger()}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	ev := l.zl.WithLevel(level.zerolog())
	if !ev.Enabled() {
		return
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String())
		}
	}

	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			if IsSensitiveKey(f.Key) {
				ev = ev.Str(f.Key, RedactedPlaceholder)
			} else {
				ev = ev.Str(f.Key, RedactMessage(v.Error()))
			}
		default:
			ev = ev.Interface(f.Key, RedactField(f.Key, v))
		}
	}

	ev.Msg(RedactMessage(msg))
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return noopLogger{}
}

var _ Logger = (*structuredLogger)(nil)
