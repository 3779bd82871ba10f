// Package logging provides leveled structured logging with JSON and text
// output.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Level represents the severity of a log message.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents the output format for logs.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var severity = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes structured log entries. Loggers are immutable; WithField and
// friends return derived loggers.
type Logger struct {
	level  Level
	format Format
	output io.Writer
	fields map[string]interface{}
}

type entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewLogger creates a logger writing to stdout.
func NewLogger(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: os.Stdout,
		fields: map[string]interface{}{},
	}
}

// SetOutput redirects log output, mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// WithField returns a logger with one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, format: l.format, output: l.output, fields: merged}
}

// WithError returns a logger carrying the error as a field.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

// Debug logs at debug level.
func (l *Logger) Debug(message string) { l.log(LevelDebug, message) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs at info level.
func (l *Logger) Info(message string) { l.log(LevelInfo, message) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs at warn level.
func (l *Logger) Warn(message string) { l.log(LevelWarn, message) }

// Error logs at error level.
func (l *Logger) Error(message string) { l.log(LevelError, message) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, message string) {
	if severity[level] < severity[l.level] {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
	}
	if len(l.fields) > 0 {
		e.Fields = l.fields
	}

	var line string
	if l.format == FormatText {
		line = fmt.Sprintf("[%s] %s: %s", e.Timestamp, e.Level, e.Message)
		if len(e.Fields) > 0 {
			fieldsJSON, _ := json.Marshal(e.Fields)
			line += fmt.Sprintf(" fields=%s", fieldsJSON)
		}
	} else {
		b, _ := json.Marshal(e)
		line = string(b)
	}
	fmt.Fprintln(l.output, line)
}

// ParseLevel parses a level string, defaulting to info.
func ParseLevel(level string) Level {
	switch level {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat parses a format string, defaulting to json.
func ParseFormat(format string) Format {
	if format == "text" {
		return FormatText
	}
	return FormatJSON
}

type loggerKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves the context's logger, falling back to a default
// info-level JSON logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return NewLogger(LevelInfo, FormatJSON)
}
