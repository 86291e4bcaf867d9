// Package log provides structured logging for queuectl commands and workers.
//
// It is a thin layer over log/slog. Console output uses a tint handler for
// readable, colorized lines; JSON output is available for workers whose
// output is redirected to files. Level and format are usually driven by the
// QUEUECTL_LOG_LEVEL and QUEUECTL_LOG_FORMAT environment variables.
package log
