package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is the service logger. It writes to stderr and, when configured,
// to an append-only log file.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// NewLogger creates a new logger instance
func NewLogger(level, format, filePath string) (*Logger, error) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger := &Logger{Logger: l}
	if filePath == "" {
		l.SetOutput(os.Stderr)
		return logger, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.SetOutput(io.MultiWriter(os.Stderr, file))
	logger.file = file
	return logger, nil
}

// NewDiscardLogger returns a logger that drops everything. Used by tests.
func NewDiscardLogger() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// FromContext returns an entry tagged with the request trace id, if any.
func (l *Logger) FromContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(l.Logger)
	if id := TraceID(ctx); id != "" {
		entry = entry.WithField("trace_id", id)
	}
	return entry
}

// Close closes the log file
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

type traceKey struct{}

// NewTraceID returns a fresh request trace id.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID stores id on ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id stored on ctx.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
