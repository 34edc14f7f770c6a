// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The command pipeline, the event stream manager and the
// history query engine depend only on the interfaces defined here, so each of them
// can run against an HTTP service, a local stand-in, or a test stub.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Translator, ExecutionService, LogSource)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/shai-ops/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.shai/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Translator maps free text to a candidate command with risk metadata.
type Translator interface {
	Translate(ctx context.Context, req domain.TranslationRequest) (domain.Translation, error)
}

// EnvironmentProbe describes the shell environment commands will run in.
type EnvironmentProbe interface {
	Snapshot(ctx context.Context) domain.Environment
}

// ExecutionService runs a command with a timeout. A returned error means the
// command could not be run at all (transport failure); a command that ran and
// failed is reported through the result.
type ExecutionService interface {
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)
}

// SecurityService evaluates commands against guardrail rules.
type SecurityService interface {
	Evaluate(command string) (domain.RiskAssessment, error)
}

// HistoryStore is the source of truth for executed commands.
type HistoryStore interface {
	Append(ctx context.Context, record domain.HistoryRecord) (string, error)
	Query(ctx context.Context, query domain.HistoryQuery) (domain.HistoryPage, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) (bool, error)
}

// HistoryMaintainer is implemented by stores that support export and retention.
type HistoryMaintainer interface {
	ExportJSON(ctx context.Context, dest string) error
	PruneOlderThan(ctx context.Context, days int) (int, error)
	Path() string
}

// RecordHandler receives each inbound log record.
type RecordHandler func(domain.LogRecord)

// StatusHandler receives connection changes reported by a stream. A
// Disconnected status with a non-nil error is an unexpected drop.
type StatusHandler func(status domain.StreamStatus, err error)

// LogSource emits structured log records, pollable and streamable.
type LogSource interface {
	FetchRecent(ctx context.Context, level domain.LogLevel, limit int) ([]domain.LogRecord, error)
	// OpenStream returns once the channel handshake has completed.
	OpenStream(ctx context.Context, filter domain.LogLevel, onRecord RecordHandler, onStatus StatusHandler) (LogStream, error)
}

// LogStream is the handle to an open live channel.
type LogStream interface {
	UpdateFilter(ctx context.Context, level domain.LogLevel) error
	Close() error
}

// ConfirmationPrompter handles interactive operator confirmations.
type ConfirmationPrompter interface {
	Confirm(turn domain.Turn) (entered string, proceed bool, err error)
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
