package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
)

// Logger wraps slog.Logger so call sites depend on one local type and
// every record carries the service-wide default fields.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the process logger from configuration.
//
// Format selects the handler: "text" for human-readable local output,
// anything else emits JSON for log collectors. Output names the sink,
// see openSink. The service name and build version ride on every
// record.
func New(cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	sink := openSink(cfg.Output)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(sink, opts)
	} else {
		handler = slog.NewJSONHandler(sink, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hearth-cloud"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// openSink resolves the configured output destination. "stdout",
// "stderr", and the empty string map to the process streams; anything
// else is treated as a file path and opened for append. An unwritable
// path falls back to stdout so a bad config cannot silence the
// process.
func openSink(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: cannot open %s, using stdout: %v\n", output, err)
		return os.Stdout
	}
	return f
}

// parseLevel maps a configured level name to slog.Level. Unknown names
// mean info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying additional default attributes,
// typically a component tag:
//
//	queueLogger := logger.With("component", "command-queue")
//	queueLogger.Info("dispatched") // includes component=command-queue
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger for use before configuration loads:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Format: "json", Output: "stdout"}, "dev")
}
