package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures a Logger.
type Options struct {
	Level  string    // debug|info|warn|error (default info)
	Format string    // text|json (default text)
	Writer io.Writer // defaults to os.Stderr
}

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// New builds a Logger from opts. Unknown levels fall back to info rather
// than failing; logging setup should never abort a command.
func New(opts Options) *Logger {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// FromEnv builds a Logger from QUEUECTL_LOG_LEVEL and QUEUECTL_LOG_FORMAT.
func FromEnv() *Logger {
	return New(Options{
		Level:  os.Getenv("QUEUECTL_LOG_LEVEL"),
		Format: os.Getenv("QUEUECTL_LOG_FORMAT"),
	})
}

// With returns a Logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
