// Package logger provides a zap-based application logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// TraceIDFunc extracts a trace id from a context, or returns "".
type TraceIDFunc func(ctx context.Context) string

// Logger writes JSON records tagged with the service name and, when the
// context carries one, the trace id.
type Logger struct {
	l       *zap.SugaredLogger
	traceID TraceIDFunc
}

// New builds a logger writing to w. traceID may be nil.
func New(w io.Writer, level Level, service string, traceID TraceIDFunc) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.Level(level))
	return &Logger{
		l:       zap.New(core).With(zap.String("service", service)).Sugar(),
		traceID: traceID,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{l: zap.NewNop().Sugar()}
}

// With returns a logger that adds the given key/value pairs to every record.
func (log *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l: log.l.With(keysAndValues...), traceID: log.traceID}
}

// Debug logs at debug level.
func (log *Logger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	log.l.Debugw(msg, log.enrich(ctx, keysAndValues)...)
}

// Info logs at info level.
func (log *Logger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	log.l.Infow(msg, log.enrich(ctx, keysAndValues)...)
}

// Warn logs at warn level.
func (log *Logger) Warn(ctx context.Context, msg string, keysAndValues ...any) {
	log.l.Warnw(msg, log.enrich(ctx, keysAndValues)...)
}

// Error logs at error level.
func (log *Logger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	log.l.Errorw(msg, log.enrich(ctx, keysAndValues)...)
}

// Sync flushes buffered records.
func (log *Logger) Sync() error {
	return log.l.Sync()
}

func (log *Logger) enrich(ctx context.Context, kv []any) []any {
	if log.traceID == nil || ctx == nil {
		return kv
	}
	if id := log.traceID(ctx); id != "" {
		kv = append(kv, "trace_id", id)
	}
	return kv
}
