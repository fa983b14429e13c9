package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents log severity levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Format selects how entries are rendered.
type Format int

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = iota
	// FormatText writes colored, human readable lines via tint.
	FormatText
)

// Logger provides structured logging on top of log/slog.
type Logger struct {
	mu     *sync.Mutex
	output io.Writer
	format Format
	level  *slog.LevelVar
	fields map[string]interface{}
	slog   *slog.Logger
}

// New creates a new Logger writing JSON to stdout at info level.
func New() *Logger {
	l := &Logger{
		mu:     &sync.Mutex{},
		output: os.Stdout,
		format: FormatJSON,
		level:  &slog.LevelVar{},
		fields: make(map[string]interface{}),
	}
	l.level.Set(slog.LevelInfo)
	l.rebuild()
	return l
}

func (l *Logger) rebuild() {
	var handler slog.Handler
	switch l.format {
	case FormatText:
		handler = tint.NewHandler(l.output, &tint.Options{
			Level:      l.level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(l.output, &slog.HandlerOptions{
			Level: l.level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.String("timestamp", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				if len(groups) == 0 && a.Key == slog.MessageKey {
					a.Key = "message"
				}
				return a
			},
		})
	}
	l.slog = slog.New(handler)
}

// SetOutput sets the output writer for the logger.
func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
	return l
}

// SetFormat switches between JSON and colored text output.
func (l *Logger) SetFormat(f Format) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = f
	l.rebuild()
	return l
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) *Logger {
	l.level.Set(level.slogLevel())
	return l
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &Logger{
		mu:     l.mu,
		output: l.output,
		format: l.format,
		level:  l.level,
		fields: newFields,
		slog:   l.slog,
	}
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, additionalFields ...map[string]interface{}) {
	lvl := level.slogLevel()
	if !l.slog.Enabled(context.Background(), lvl) {
		return
	}

	allFields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		allFields[k] = v
	}
	for _, f := range additionalFields {
		for k, v := range f {
			allFields[k] = v
		}
	}

	keys := make([]string, 0, len(allFields))
	for k := range allFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, allFields[k]))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(attrs) > 0 {
		l.slog.LogAttrs(context.Background(), lvl, msg, slog.Attr{Key: "fields", Value: slog.GroupValue(attrs...)})
		return
	}
	l.slog.LogAttrs(context.Background(), lvl, msg)
}

// Default is the default logger instance.
var Default = New()

// SetDefaultLevel sets the level for the default logger.
func SetDefaultLevel(level Level) {
	Default.SetLevel(level)
}

// Debug logs using the default logger.
func Debug(msg string, fields ...map[string]interface{}) {
	Default.Debug(msg, fields...)
}

// Info logs using the default logger.
func Info(msg string, fields ...map[string]interface{}) {
	Default.Info(msg, fields...)
}

// Warn logs using the default logger.
func Warn(msg string, fields ...map[string]interface{}) {
	Default.Warn(msg, fields...)
}

// Error logs using the default logger.
func Error(msg string, fields ...map[string]interface{}) {
	Default.Error(msg, fields...)
}
