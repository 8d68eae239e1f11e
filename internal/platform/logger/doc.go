// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Records emitted with a context that carries an
// OpenTelemetry span are annotated with trace_id and span_id.
package logger
