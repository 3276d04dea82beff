// Package logger is the process-wide structured logger. Every helper takes the request
// context first so lines carry the active trace and span ids.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"llm-fx-advisor/internal/trace"
)

var (
	global   = slog.New(slog.NewTextHandler(io.Discard, nil))
	detailed bool
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // json or text
	// Detailed turns on Debug lines and adds the calling function, file and line.
	Detailed bool
	Output   io.Writer
}

// Init configures the logger from LOG_LEVEL, LOG_FORMAT and LOG_DETAILED.
// Call trace.Init first so log lines carry span ids.
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:    envOr("LOG_LEVEL", "INFO"),
		Format:   envOr("LOG_FORMAT", "json"),
		Detailed: envOr("LOG_DETAILED", "false") == "true",
	}
}

func InitWithConfig(c LogConfig) error {
	out := c.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level(c.Level)}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(c.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	}

	detailed = c.Detailed
	global = slog.New(h)
	slog.SetDefault(global)
	return nil
}

// Handler is the configured handler, for libraries that want a *log.Logger.
func Handler() slog.Handler {
	return global.Handler()
}

func level(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Debug is emitted only with LOG_DETAILED=true.
func Debug(ctx context.Context, msg string, args ...any) {
	if detailed {
		emit(ctx, slog.LevelDebug, 1, msg, args)
	}
}

func Info(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, 1, msg, args)
}

func Warn(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, 1, msg, args)
}

func Error(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelError, 1, msg, args)
}

// ErrorWithErr logs err under "error" and marks the active span failed.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	failSpan(ctx, err)
	emit(ctx, slog.LevelError, 1, msg, append([]any{"error", err}, args...))
}

// The *Skip variants are for decorators: skip extra frames so the source names their caller.

func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	if detailed {
		emit(ctx, slog.LevelDebug, skip+1, msg, args)
	}
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, skip+1, msg, args)
}

func WarnSkip(ctx context.Context, skip int, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, skip+1, msg, args)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	failSpan(ctx, err)
	emit(ctx, slog.LevelError, skip+1, msg, append([]any{"error", err}, args...))
}

// Advisory logs one advisory outcome at INFO and adds it to the active span as an event.
func Advisory(ctx context.Context, symbol, signal string, confidence int, reason string, fields ...any) {
	if span := oteltrace.SpanFromContext(ctx); trace.Enabled() && span.SpanContext().IsValid() {
		span.AddEvent("advisory", oteltrace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.String("signal", signal),
			attribute.Int("confidence", confidence),
		))
	}
	args := append([]any{
		"type", "ADVISORY",
		"symbol", symbol,
		"signal", signal,
		"confidence", confidence,
		"reason", reason,
	}, fields...)
	emit(ctx, slog.LevelInfo, 1, "Advisory produced", args)
}

func failSpan(ctx context.Context, err error) {
	if err == nil || !trace.Enabled() {
		return
	}
	if span := oteltrace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// emit writes one line. skip counts frames above emit's caller that should be hidden.
func emit(ctx context.Context, lvl slog.Level, skip int, msg string, args []any) {
	if !global.Enabled(ctx, lvl) {
		return
	}
	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}
	if detailed {
		if pc, file, line, ok := runtime.Caller(skip + 1); ok {
			fn := "unknown"
			if f := runtime.FuncForPC(pc); f != nil {
				fn = f.Name()
			}
			args = append(args, slog.Group("source",
				slog.String("function", fn),
				slog.String("file", file),
				slog.Int("line", line),
			))
		}
	}
	global.Log(ctx, lvl, msg, args...)
}
