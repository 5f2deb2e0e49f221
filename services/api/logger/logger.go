// Package logger provides structured logging for the API and importer.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey contextKey = "request_id"

// Logger wraps slog.Logger for structured logging.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the environment: text at debug level in
// development, JSON at info level otherwise.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger carrying the request ID stored in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return l.WithRequestID(requestID)
	}
	return l
}

// WithRequestID returns a logger with the request ID attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// HTTPRequest logs a completed HTTP request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs a request that ended in an error response.
func (l *Logger) HTTPError(method, path string, status int, kind string, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// DatasetFetch logs a dataset load and where it came from.
func (l *Logger) DatasetFetch(dataset, source string, bytes int, markers int) {
	l.Info("dataset_fetch",
		slog.String("dataset", dataset),
		slog.String("source", source),
		slog.Int("bytes", bytes),
		slog.Int("markers", markers),
	)
}

// CacheError logs a cache failure that was degraded to a blob fetch.
func (l *Logger) CacheError(operation, dataset string, err error) {
	l.Warn("cache_error",
		slog.String("operation", operation),
		slog.String("dataset", dataset),
		slog.String("error", err.Error()),
	)
}

// QueryExecuted logs the outcome of one engine run.
func (l *Logger) QueryExecuted(dataset string, offset, returned, nextIndex, total int, truncated bool) {
	l.Debug("query_executed",
		slog.String("dataset", dataset),
		slog.Int("offset", offset),
		slog.Int("returned", returned),
		slog.Int("next_index", nextIndex),
		slog.Int("total", total),
		slog.Bool("truncated", truncated),
	)
}
