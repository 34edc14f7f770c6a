package helpers

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	configapp "github.com/doeshing/shai-ops/internal/application/config"
	"github.com/doeshing/shai-ops/internal/domain"
	configinfra "github.com/doeshing/shai-ops/internal/infrastructure/config"
)

// SaveConfigWithValidation validates and saves configuration, backing up the
// previous file first.
func SaveConfigWithValidation(loader *configinfra.FileLoader, cfg domain.Config) error {
	if loader == nil {
		return fmt.Errorf("config loader unavailable")
	}
	if err := configapp.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if _, err := os.Stat(loader.Path()); err == nil {
		if _, err := loader.Backup(); err != nil {
			return fmt.Errorf("failed to create configuration backup: %w", err)
		}
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// ConfigValue returns the YAML value at a dotted key path such as
// "stream.retry_attempts".
func ConfigValue(cfg domain.Config, keyPath string) (interface{}, error) {
	tree, err := configToMap(cfg)
	if err != nil {
		return nil, err
	}
	value, ok := traverse(tree, splitKey(keyPath))
	if !ok {
		return nil, fmt.Errorf("key %q not found", keyPath)
	}
	return value, nil
}

// SetConfigValue parses value as YAML (falling back to a literal string) and
// writes it at keyPath, returning the updated config.
func SetConfigValue(cfg domain.Config, keyPath, value string) (domain.Config, error) {
	keys := splitKey(keyPath)
	if len(keys) == 0 {
		return cfg, fmt.Errorf("key path required")
	}
	tree, err := configToMap(cfg)
	if err != nil {
		return cfg, err
	}
	if _, ok := traverse(tree, keys); !ok {
		return cfg, fmt.Errorf("key %q not found", keyPath)
	}

	var parsed interface{}
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	setNested(tree, keys, parsed)

	data, err := yaml.Marshal(tree)
	if err != nil {
		return cfg, err
	}
	var out domain.Config
	if err := yaml.Unmarshal(data, &out); err != nil {
		return cfg, fmt.Errorf("invalid value for %s: %w", keyPath, err)
	}
	return out, nil
}

func configToMap(cfg domain.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func splitKey(keyPath string) []string {
	keyPath = strings.Trim(strings.TrimSpace(keyPath), ".")
	if keyPath == "" {
		return nil
	}
	return strings.Split(keyPath, ".")
}

func traverse(data interface{}, keys []string) (interface{}, bool) {
	if len(keys) == 0 {
		return data, true
	}
	node, ok := data.(map[string]interface{})
	if !ok {
		return nil, false
	}
	next, ok := node[keys[0]]
	if !ok {
		return nil, false
	}
	return traverse(next, keys[1:])
}

func setNested(root map[string]interface{}, keys []string, value interface{}) {
	current := root
	for _, key := range keys[:len(keys)-1] {
		child, ok := current[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			current[key] = child
		}
		current = child
	}
	current[keys[len(keys)-1]] = value
}
