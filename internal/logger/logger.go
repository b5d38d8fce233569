package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	jhlog "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/log"
	"go.opentelemetry.io/otel/trace"
)

const defaultLevel = slog.LevelInfo

// ParseLevel converts DEBUG/INFO/WARN/ERROR (any case) to a slog.Level.
// Unknown strings map to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// defaultLogger implements jhlog.Logger on top of log/slog.
type defaultLogger struct {
	*slog.Logger
}

var _ jhlog.Logger = (*defaultLogger)(nil)

// NewLogger builds a Logger writing "text" or "json" records at levelStr and
// above to writer (os.Stderr when nil). Records carry trace_id and span_id
// when logged with a context holding a valid span.
func NewLogger(levelStr string, formatStr string, writer io.Writer) jhlog.Logger {
	if writer == nil {
		writer = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(levelStr),
		ReplaceAttr: replaceLevelAttribute,
	}

	var baseHandler slog.Handler
	switch strings.ToLower(formatStr) {
	case "json":
		baseHandler = slog.NewJSONHandler(writer, opts)
	default:
		baseHandler = slog.NewTextHandler(writer, opts)
	}

	return &defaultLogger{Logger: slog.New(NewOtelHandler(baseHandler))}
}

// NewDefaultLogger is a text logger on stderr.
func NewDefaultLogger(levelStr string) jhlog.Logger {
	return NewLogger(levelStr, "text", os.Stderr)
}

// NewDiscardLogger drops everything. Used by tests and as a fallback for
// components constructed without a logger.
func NewDiscardLogger() jhlog.Logger {
	return NewLogger("ERROR", "text", io.Discard)
}

var levelStringMap = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
}

func replaceLevelAttribute(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	levelStr, exists := levelStringMap[level]
	if !exists {
		levelStr = level.String()
	}
	a.Value = slog.StringValue(levelStr)
	return a
}

func (l *defaultLogger) logf(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	l.Logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args...)
}

// Errorf logs at ERROR. If the last argument is an error its details are
// added as attributes; listener and stage failures get their context fields.
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, slog.LevelError) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	var attrs []any
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			attrs = errorAttrs(err)
		}
	}
	l.Logger.Log(ctx, slog.LevelError, msg, attrs...)
}

func errorAttrs(err error) []any {
	attrs := []any{slog.String("error_category", string(jherrors.Categorize(err)))}

	var lerr *jherrors.ListenerError
	var serr *jherrors.StageExecutionError
	switch {
	case errors.As(err, &lerr):
		attrs = append(attrs,
			slog.String("error_type", "ListenerError"),
			slog.String("key", lerr.Key),
			slog.String("application_id", lerr.ApplicationID),
			slog.String("listener", lerr.Listener),
		)
		if lerr.Cause != nil {
			attrs = append(attrs, slog.String("error", lerr.Cause.Error()))
		}
	case errors.As(err, &serr):
		attrs = append(attrs,
			slog.String("error_type", "StageExecutionError"),
			slog.String("stage", serr.Stage),
			slog.String("worker", serr.Worker),
		)
		if serr.Cause != nil {
			attrs = append(attrs, slog.String("error", serr.Cause.Error()))
		}
	default:
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	return attrs
}

func (l *defaultLogger) Log(level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(context.Background(), level, msg, args...)
}

func (l *defaultLogger) LogCtx(ctx context.Context, level slog.Level, msg string, args ...interface{}) {
	l.Logger.Log(ctx, level, msg, args...)
}

func (l *defaultLogger) With(args ...interface{}) jhlog.Logger {
	return &defaultLogger{Logger: l.Logger.With(args...)}
}

func (l *defaultLogger) IsEnabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// OtelHandler is slog middleware that adds trace_id and span_id attributes
// when the record's context carries a valid OpenTelemetry span.
type OtelHandler struct {
	next slog.Handler
}

func NewOtelHandler(next slog.Handler) *OtelHandler {
	return &OtelHandler{next: next}
}

func (h *OtelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *OtelHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, record)
}

func (h *OtelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewOtelHandler(h.next.WithAttrs(attrs))
}

func (h *OtelHandler) WithGroup(name string) slog.Handler {
	return NewOtelHandler(h.next.WithGroup(name))
}
