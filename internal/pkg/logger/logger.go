package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
)

// StdLogger is a lightweight implementation backed by Go's log package.
type StdLogger struct {
	verbose bool
}

// NewStd creates a StdLogger.
func NewStd(verbose bool) *StdLogger {
	return &StdLogger{verbose: verbose}
}

func (l *StdLogger) Debug(msg string, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	log.Println("[DEBUG]", msg, fields)
}

func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	log.Println("[INFO]", msg, fields)
}

func (l *StdLogger) Warn(msg string, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	log.Println("[WARN]", msg, fields)
}

func (l *StdLogger) Error(msg string, err error, fields map[string]interface{}) {
	if !l.verbose {
		return
	}
	log.Println("[ERROR]", msg, err, fields)
}

// Options configures a slog-backed Logger.
type Options struct {
	Writer io.Writer
	Format string // "json" or "text"
	Level  string
	Source string
	// Sink, when set, receives every entry as a log record.
	Sink Sink
}

// Sink accepts log records, typically an in-process log hub.
type Sink interface {
	Publish(domain.LogRecord)
}

// Logger adapts slog to the application's Logger port.
type Logger struct {
	slog   *slog.Logger
	source string
	sink   Sink
}

// New builds a Logger from options.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	source := opts.Source
	if source == "" {
		source = "shai"
	}
	return &Logger{
		slog:   slog.New(handler).With(slog.String("source", source)),
		source: source,
		sink:   opts.Sink,
	}
}

// With returns a logger tagged with a different source.
func (l *Logger) With(source string) *Logger {
	return &Logger{
		slog:   l.slog.With(slog.String("component", source)),
		source: source,
		sink:   l.sink,
	}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.emit(slog.LevelDebug, domain.LevelDebug, msg, nil, fields)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.emit(slog.LevelInfo, domain.LevelInfo, msg, nil, fields)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.emit(slog.LevelWarn, domain.LevelWarning, msg, nil, fields)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.emit(slog.LevelError, domain.LevelError, msg, err, fields)
}

func (l *Logger) emit(level slog.Level, recordLevel domain.LogLevel, msg string, err error, fields map[string]interface{}) {
	attrs := fieldAttrs(fields)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.slog.LogAttrs(context.Background(), level, msg, attrs...)

	if l.sink == nil {
		return
	}
	// the sink sees debug entries only when the handler would
	if !l.slog.Enabled(context.Background(), level) {
		return
	}
	l.sink.Publish(domain.LogRecord{
		Timestamp: time.Now(),
		Level:     recordLevel,
		Source:    l.source,
		Message:   flatten(msg, err, fields),
	})
}

func fieldAttrs(fields map[string]interface{}) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields)+1)
	for _, k := range sortedKeys(fields) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

func flatten(msg string, err error, fields map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	return b.String()
}

func sortedKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
