package domain

import (
	"strings"
	"time"
)

// LogLevel is the severity of a log record.
type LogLevel string

const (
	LevelAll      LogLevel = "ALL"
	LevelDebug    LogLevel = "DEBUG"
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// ParseLogLevel accepts common spellings; anything unrecognized means ALL.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	case "CRITICAL", "FATAL":
		return LevelCritical
	default:
		return LevelAll
	}
}

// Admits reports whether a record at level passes this filter. The filter is an
// exact match; ALL admits everything.
func (l LogLevel) Admits(level LogLevel) bool {
	return l == "" || l == LevelAll || l == level
}

// LogRecord is one structured observability event.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
}

// StreamStatus is the connection lifecycle of the event stream manager.
type StreamStatus string

const (
	StreamDisconnected StreamStatus = "Disconnected"
	StreamConnecting   StreamStatus = "Connecting"
	StreamConnected    StreamStatus = "Connected"
	StreamRetrying     StreamStatus = "Retrying"
)
