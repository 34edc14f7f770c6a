package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/shai-ops/assets"
	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/filesystem"
	"github.com/doeshing/shai-ops/internal/ports"
)

// FileLoader loads YAML configuration from ~/.shai/config.yaml (overridable via SHAI_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created with defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
				return domain.Config{}, fmt.Errorf("write default config: %w", err)
			}
			return DefaultConfig(), nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Save writes the given config back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ensureConfigDir(l.resolvePath()); err != nil {
		return err
	}
	return os.WriteFile(l.resolvePath(), raw, domain.SecureFilePermissions)
}

// Reset overwrites the config with defaults and returns the default snapshot.
func (l *FileLoader) Reset() (domain.Config, error) {
	cfg := DefaultConfig()
	if err := l.Save(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Backup copies the current config file to a timestamped backup.
func (l *FileLoader) Backup() (string, error) {
	path := l.resolvePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

// EnsureGuardrailRules writes the default guardrail rules to path if no file
// exists there yet.
func EnsureGuardrailRules(path string) (string, error) {
	path = ExpandPath(path)
	if path == "" {
		path = filesystem.StatePath("guardrail.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := ensureConfigDir(path); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, assets.DefaultGuardrailYAML, domain.SecureFilePermissions)
}

// DefaultConfig returns the embedded default configuration.
func DefaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		// embedded YAML is compiled in; fall back to accessor defaults
		return hydrateDefaults(domain.Config{ConfigFormatVersion: "1", Security: domain.SecuritySettings{Enabled: true}})
	}
	return hydrateDefaults(cfg)
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return ExpandPath(l.overridePath)
	}
	if custom := os.Getenv("SHAI_CONFIG"); custom != "" {
		return ExpandPath(custom)
	}
	return filesystem.StatePath("config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Execution.TimeoutSeconds == 0 {
		cfg.Execution.TimeoutSeconds = int(domain.DefaultExecutionTimeout / time.Second)
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = "sqlite"
	}
	if cfg.Security.RulesFile == "" {
		cfg.Security.RulesFile = filesystem.StatePath("guardrail.yaml")
	}
	return cfg
}

// ExpandPath resolves a leading ~/ against the user's home directory.
func ExpandPath(path string) string {
	return filesystem.ExpandHome(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
