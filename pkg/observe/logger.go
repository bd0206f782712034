// Package observe provides the logger, counters and tracer collaborators injected into components.
package observe

import (
	"fmt"
	"strings"
)

// Level is a log level. Higher values are more verbose.
type Level int

const (
	LevelNone Level = iota
	LevelFatal
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// ParseLevel converts a level name into a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off":
		return LevelNone
	case "fatal":
		return LevelFatal
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	default:
		return LevelInfo
	}
}

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelFatal:
		return "fatal"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "info"
	}
}

// Logger writes log entries.
type Logger interface {
	Level() Level
	Log(level Level, traceID string, err error, message string, args ...any)
}

// NullLogger discards everything.
type NullLogger struct{}

// NewNullLogger creates a NullLogger.
func NewNullLogger() *NullLogger { return &NullLogger{} }

// NullLogger methods do nothing.
func (*NullLogger) Level() Level                             { return LevelNone }
func (*NullLogger) Log(Level, string, error, string, ...any) {}

// CompositeLogger fans entries out to a fixed list of loggers.
type CompositeLogger struct {
	loggers []Logger
}

// NewCompositeLogger creates a composite over loggers. Nil entries are skipped.
func NewCompositeLogger(loggers ...Logger) *CompositeLogger {
	c := &CompositeLogger{}
	for _, l := range loggers {
		if l != nil {
			c.loggers = append(c.loggers, l)
		}
	}
	return c
}

// Level returns the most verbose level of the children.
func (c *CompositeLogger) Level() Level {
	level := LevelNone
	for _, l := range c.loggers {
		if l.Level() > level {
			level = l.Level()
		}
	}
	return level
}

// Log forwards to every child whose level admits the entry.
func (c *CompositeLogger) Log(level Level, traceID string, err error, message string, args ...any) {
	for _, l := range c.loggers {
		if level <= l.Level() {
			l.Log(level, traceID, err, message, args...)
		}
	}
}

// Fatal forwards to every member.
func (c *CompositeLogger) Fatal(traceID string, err error, message string, args ...any) {
	c.Log(LevelFatal, traceID, err, message, args...)
}

// Error forwards to every member.
func (c *CompositeLogger) Error(traceID string, err error, message string, args ...any) {
	c.Log(LevelError, traceID, err, message, args...)
}

// Warn forwards to every member.
func (c *CompositeLogger) Warn(traceID string, message string, args ...any) {
	c.Log(LevelWarn, traceID, nil, message, args...)
}

// Info forwards to every member.
func (c *CompositeLogger) Info(traceID string, message string, args ...any) {
	c.Log(LevelInfo, traceID, nil, message, args...)
}

// Debug forwards to every member.
func (c *CompositeLogger) Debug(traceID string, message string, args ...any) {
	c.Log(LevelDebug, traceID, nil, message, args...)
}

// Trace forwards to every member.
func (c *CompositeLogger) Trace(traceID string, message string, args ...any) {
	c.Log(LevelTrace, traceID, nil, message, args...)
}

func formatMessage(message string, args []any) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}
