package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/shai-ops/internal/domain"
)

// TestConfig_Defaults tests that zero values fall back to defaults
func TestConfig_Defaults(t *testing.T) {
	var cfg domain.Config

	if got := cfg.GetContextTurns(); got != domain.DefaultContextTurns {
		t.Errorf("GetContextTurns() = %d, want %d", got, domain.DefaultContextTurns)
	}
	if got := cfg.GetPageSize(); got != 20 {
		t.Errorf("GetPageSize() = %d, want 20", got)
	}
	if got := cfg.GetExecutionTimeout(); got != 30*time.Second {
		t.Errorf("GetExecutionTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetExecutionShell(); got != "sh" {
		t.Errorf("GetExecutionShell() = %q, want sh", got)
	}
	if got := cfg.GetHistoryBackend(); got != "sqlite" {
		t.Errorf("GetHistoryBackend() = %q, want sqlite", got)
	}
	if cfg.UsesRemoteTranslation() {
		t.Error("UsesRemoteTranslation() = true for empty endpoint")
	}
}

// TestConfig_Overrides tests that explicit values win over defaults
func TestConfig_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		cfg   domain.Config
		check func(t *testing.T, cfg domain.Config)
	}{
		{
			name: "execution timeout",
			cfg:  domain.Config{Execution: domain.ExecutionSettings{TimeoutSeconds: 5}},
			check: func(t *testing.T, cfg domain.Config) {
				if got := cfg.GetExecutionTimeout(); got != 5*time.Second {
					t.Errorf("got %v, want 5s", got)
				}
			},
		},
		{
			name: "backfill limit is capped by buffer capacity",
			cfg:  domain.Config{Stream: domain.StreamSettings{BackfillLimit: 5000}},
			check: func(t *testing.T, cfg domain.Config) {
				if got := cfg.GetBackfillLimit(); got != domain.LogBufferCapacity {
					t.Errorf("got %d, want %d", got, domain.LogBufferCapacity)
				}
			},
		},
		{
			name: "file backend",
			cfg:  domain.Config{History: domain.HistorySettings{Backend: "FILE"}},
			check: func(t *testing.T, cfg domain.Config) {
				if got := cfg.GetHistoryBackend(); got != "file" {
					t.Errorf("got %q, want file", got)
				}
			},
		},
		{
			name: "auto shell resolves to sh",
			cfg:  domain.Config{Execution: domain.ExecutionSettings{Shell: "auto"}},
			check: func(t *testing.T, cfg domain.Config) {
				if got := cfg.GetExecutionShell(); got != "sh" {
					t.Errorf("got %q, want sh", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.cfg)
		})
	}
}

// TestConfig_ValidateConsistency tests configuration consistency validation
func TestConfig_ValidateConsistency(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.Config
		wantError bool
	}{
		{
			name:      "empty configuration is valid",
			config:    domain.Config{},
			wantError: false,
		},
		{
			name: "invalid: retry base exceeds max",
			config: domain.Config{
				Stream: domain.StreamSettings{RetryBaseMS: 2000, RetryMaxMS: 1000},
			},
			wantError: true,
		},
		{
			name: "invalid: unknown history backend",
			config: domain.Config{
				History: domain.HistorySettings{Backend: "redis"},
			},
			wantError: true,
		},
		{
			name: "invalid: auth env without endpoint",
			config: domain.Config{
				Translation: domain.TranslationSettings{AuthEnvVar: "SHAI_TOKEN"},
			},
			wantError: true,
		},
		{
			name: "valid remote translation",
			config: domain.Config{
				Translation: domain.TranslationSettings{Endpoint: "http://localhost:9000/translate", AuthEnvVar: "SHAI_TOKEN"},
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateConsistency()

			if tt.wantError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
