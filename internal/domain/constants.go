package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultExecutionTimeout bounds a single command execution
	DefaultExecutionTimeout = 30 * time.Second
	// DefaultTranslationTimeout bounds a single translation call
	DefaultTranslationTimeout = 60 * time.Second
	// DefaultHTTPClientTimeout is the timeout for non-streaming HTTP requests
	DefaultHTTPClientTimeout = 60 * time.Second
)

// Session constants
const (
	// DefaultContextTurns is how many recent turns are sent as translation context
	DefaultContextTurns = 5
	// DefaultMaxTurns bounds the turns a session keeps
	DefaultMaxTurns = 200
)

// History constants
const (
	// DefaultHistoryPageSize is the default number of records per page
	DefaultHistoryPageSize = 20
	// MaxHistoryPageSize caps a single page request
	MaxHistoryPageSize = 500
	// DefaultHistoryRetainDays is the default number of days to retain history
	DefaultHistoryRetainDays = 30
)

// Stream constants
const (
	// LogBufferCapacity is the hard bound of the live log buffer
	LogBufferCapacity = 1000
	// DefaultBackfillLimit is how many records are pulled when a stream starts
	DefaultBackfillLimit = 200
	// DefaultRetryBase is the first reconnect delay
	DefaultRetryBase = 500 * time.Millisecond
	// DefaultRetryMax caps a single reconnect delay
	DefaultRetryMax = 15 * time.Second
	// DefaultRetryAttempts is how many reconnects are tried before giving up
	DefaultRetryAttempts = 8
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
