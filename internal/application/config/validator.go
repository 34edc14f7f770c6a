package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/doeshing/shai-ops/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if err := validatePreferences(cfg.Preferences); err != nil {
		return err
	}
	if err := validateEndpoint("translation.endpoint", cfg.Translation.Endpoint); err != nil {
		return err
	}
	if err := validateEndpoint("stream.endpoint", cfg.Stream.Endpoint); err != nil {
		return err
	}
	if err := validateSecurity(cfg.Security); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	if cfg.Execution.TimeoutSeconds < 0 || cfg.Translation.TimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	return nil
}

func validatePreferences(prefs domain.Preferences) error {
	if prefs.PageSize > domain.MaxHistoryPageSize {
		return fmt.Errorf("preferences.page_size must be <= %d, got %d", domain.MaxHistoryPageSize, prefs.PageSize)
	}
	switch strings.ToLower(prefs.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("preferences.log_format must be text|json, got %s", prefs.LogFormat)
	}
	return nil
}

func validateEndpoint(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s invalid: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %s", field, value)
	}
	return nil
}

func validateSecurity(sec domain.SecuritySettings) error {
	if sec.Enabled && sec.RulesFile == "" {
		return fmt.Errorf("security.rules_file must be set when security is enabled")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0")
	}
	return nil
}
