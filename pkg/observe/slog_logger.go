package observe

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/morezero/components/pkg/config"
)

// SlogLogger writes entries through log/slog.
type SlogLogger struct {
	level  Level
	format string
	out    io.Writer
	logger *slog.Logger
}

// NewSlogLogger creates a logger writing text to stderr at info level.
func NewSlogLogger() *SlogLogger {
	l := &SlogLogger{level: LevelInfo, format: "text", out: os.Stderr}
	l.rebuild()
	return l
}

// NewSlogLoggerWith creates a logger over an existing slog.Logger.
func NewSlogLoggerWith(logger *slog.Logger, level Level) *SlogLogger {
	return &SlogLogger{level: level, format: "custom", logger: logger}
}

// Configure reads level ("info", "debug", ...) and format ("text" or "json").
func (l *SlogLogger) Configure(params config.Params) error {
	l.level = ParseLevel(params.GetStringWithDefault("level", l.level.String()))
	l.format = params.GetStringWithDefault("format", l.format)
	l.rebuild()
	return nil
}

// SetOutput redirects output. Used by tests.
func (l *SlogLogger) SetOutput(w io.Writer) {
	l.out = w
	l.rebuild()
}

// Level returns the most verbose level that is written.
func (l *SlogLogger) Level() Level {
	return l.level
}

// Log writes one record with the trace id and error as attributes.
func (l *SlogLogger) Log(level Level, traceID string, err error, message string, args ...any) {
	if level > l.level || level == LevelNone {
		return
	}
	attrs := make([]slog.Attr, 0, 2)
	if traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), toSlogLevel(level), formatMessage(message, args), attrs...)
}

func (l *SlogLogger) rebuild() {
	if l.format == "custom" || l.out == nil {
		return
	}
	opts := &slog.HandlerOptions{Level: toSlogLevel(l.level)}
	if l.format == "json" {
		l.logger = slog.New(slog.NewJSONHandler(l.out, opts))
		return
	}
	l.logger = slog.New(slog.NewTextHandler(l.out, opts))
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case LevelFatal, LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug, LevelTrace:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
