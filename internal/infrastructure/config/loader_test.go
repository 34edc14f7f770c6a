package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/doeshing/shai-ops/internal/domain"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GetHistoryBackend() != "sqlite" || cfg.GetPageSize() != domain.DefaultHistoryPageSize {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.IsSecurityEnabled() {
		t.Fatal("security should default to enabled")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	again, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if again.GetRetryAttempts() != cfg.GetRetryAttempts() {
		t.Fatal("reloading the written defaults changed values")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `translation:
  endpoint: http://localhost:9000/translate
execution:
  timeout: 5
  reconfirm_history: true
history:
  backend: file
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHAI_CONFIG", path)

	cfg, err := NewFileLoader("").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.UsesRemoteTranslation() || cfg.GetHistoryBackend() != "file" || !cfg.Execution.ReconfirmHistory {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.GetExecutionTimeout().Seconds() != 5 {
		t.Fatalf("timeout = %v", cfg.GetExecutionTimeout())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("history: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLoader(path).Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveBackupAndGuardrailRules(t *testing.T) {
	dir := t.TempDir()
	loader := NewFileLoader(filepath.Join(dir, "config.yaml"))
	if _, err := loader.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	backup, err := loader.Backup()
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	rules, err := EnsureGuardrailRules(filepath.Join(dir, "guardrail.yaml"))
	if err != nil {
		t.Fatalf("EnsureGuardrailRules() error = %v", err)
	}
	data, err := os.ReadFile(rules)
	if err != nil || len(data) == 0 {
		t.Fatalf("guardrail rules not written: %v", err)
	}
}
