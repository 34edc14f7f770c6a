package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rich domain accessors: every consumer reads configuration through these so
// zero values fall back to the same defaults everywhere.

// GetContextTurns returns how many recent turns feed the translator
func (c *Config) GetContextTurns() int {
	if c.Preferences.ContextTurns <= 0 {
		return DefaultContextTurns
	}
	return c.Preferences.ContextTurns
}

// GetMaxTurns returns the bound on turns kept per session
func (c *Config) GetMaxTurns() int {
	if c.Preferences.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return c.Preferences.MaxTurns
}

// GetPageSize returns the history page size
func (c *Config) GetPageSize() int {
	if c.Preferences.PageSize <= 0 {
		return DefaultHistoryPageSize
	}
	return c.Preferences.PageSize
}

// GetExecutionTimeout returns the command execution timeout
func (c *Config) GetExecutionTimeout() time.Duration {
	if c.Execution.TimeoutSeconds <= 0 {
		return DefaultExecutionTimeout
	}
	return time.Duration(c.Execution.TimeoutSeconds) * time.Second
}

// GetTranslationTimeout returns the translation request timeout
func (c *Config) GetTranslationTimeout() time.Duration {
	if c.Translation.TimeoutSeconds <= 0 {
		return DefaultTranslationTimeout
	}
	return time.Duration(c.Translation.TimeoutSeconds) * time.Second
}

// GetExecutionShell returns the configured shell for command execution
// Returns the default shell if not configured
func (c *Config) GetExecutionShell() string {
	const defaultShell = "sh"

	if c.Execution.Shell == "" || c.Execution.Shell == "auto" {
		return defaultShell
	}
	return c.Execution.Shell
}

// UsesRemoteTranslation reports whether a translation endpoint is configured
func (c *Config) UsesRemoteTranslation() bool {
	return strings.TrimSpace(c.Translation.Endpoint) != ""
}

// GetHistoryBackend returns "sqlite", "file" or "memory"
func (c *Config) GetHistoryBackend() string {
	switch strings.ToLower(c.History.Backend) {
	case "file":
		return "file"
	case "memory":
		return "memory"
	default:
		return "sqlite"
	}
}

// GetHistoryRetentionDays returns the number of days to retain history
func (c *Config) GetHistoryRetentionDays() int {
	if c.History.RetentionDays <= 0 {
		return DefaultHistoryRetainDays
	}
	return c.History.RetentionDays
}

// GetBackfillLimit returns how many records seed a new stream
func (c *Config) GetBackfillLimit() int {
	if c.Stream.BackfillLimit <= 0 {
		return DefaultBackfillLimit
	}
	if c.Stream.BackfillLimit > LogBufferCapacity {
		return LogBufferCapacity
	}
	return c.Stream.BackfillLimit
}

// GetRetryBase returns the first reconnect delay
func (c *Config) GetRetryBase() time.Duration {
	if c.Stream.RetryBaseMS <= 0 {
		return DefaultRetryBase
	}
	return time.Duration(c.Stream.RetryBaseMS) * time.Millisecond
}

// GetRetryMax returns the cap of a single reconnect delay
func (c *Config) GetRetryMax() time.Duration {
	if c.Stream.RetryMaxMS <= 0 {
		return DefaultRetryMax
	}
	return time.Duration(c.Stream.RetryMaxMS) * time.Millisecond
}

// GetRetryAttempts returns the reconnect budget
func (c *Config) GetRetryAttempts() int {
	if c.Stream.RetryAttempts <= 0 {
		return DefaultRetryAttempts
	}
	return c.Stream.RetryAttempts
}

// IsSecurityEnabled checks if security guardrails are enabled
func (c *Config) IsSecurityEnabled() bool {
	return c.Security.Enabled
}

// GetServerAddr returns the listen address of the HTTP API
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return "127.0.0.1:8787"
	}
	return c.Server.Addr
}

// GetRateLimit returns the per-client request rate and burst
func (c *Config) GetRateLimit() (float64, int) {
	rps, burst := c.Server.RateLimit, c.Server.Burst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return rps, burst
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	if c.Stream.RetryBaseMS > 0 && c.Stream.RetryMaxMS > 0 && c.Stream.RetryBaseMS > c.Stream.RetryMaxMS {
		return fmt.Errorf("stream.retry_base_ms (%d) exceeds stream.retry_max_ms (%d)", c.Stream.RetryBaseMS, c.Stream.RetryMaxMS)
	}

	switch strings.ToLower(c.History.Backend) {
	case "", "sqlite", "file", "memory":
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}

	if c.Translation.AuthEnvVar != "" && !c.UsesRemoteTranslation() {
		return fmt.Errorf("translation.auth_env_var is set but translation.endpoint is empty")
	}

	return nil
}
