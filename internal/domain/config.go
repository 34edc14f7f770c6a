package domain

// Config mirrors ~/.shai/config.yaml.
type Config struct {
	ConfigFormatVersion string              `yaml:"config_format_version"`
	Preferences         Preferences         `yaml:"preferences"`
	Translation         TranslationSettings `yaml:"translation"`
	Execution           ExecutionSettings   `yaml:"execution"`
	History             HistorySettings     `yaml:"history"`
	Stream              StreamSettings      `yaml:"stream"`
	Security            SecuritySettings    `yaml:"security"`
	Server              ServerSettings      `yaml:"server"`
}

// Preferences captures user level toggles.
type Preferences struct {
	ContextTurns int    `yaml:"context_turns"`
	MaxTurns     int    `yaml:"max_turns"`
	PageSize     int    `yaml:"page_size"`
	LogFormat    string `yaml:"log_format"`
	LogLevel     string `yaml:"log_level"`
}

// TranslationSettings points at the translation service.
type TranslationSettings struct {
	Endpoint        string `yaml:"endpoint"`
	AuthEnvVar      string `yaml:"auth_env_var"`
	TimeoutSeconds  int    `yaml:"timeout"`
	// SendEnvironment attaches a working-directory snapshot to each request.
	SendEnvironment bool   `yaml:"send_environment"`
}

// ExecutionSettings controls how commands run.
type ExecutionSettings struct {
	Shell          string `yaml:"shell"`
	TimeoutSeconds int    `yaml:"timeout"`
	// ReconfirmHistory makes re-executed history commands keep their recorded
	// risk instead of being treated as safe.
	ReconfirmHistory bool `yaml:"reconfirm_history"`
}

// HistorySettings selects and tunes the history store.
type HistorySettings struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// StreamSettings configures the live log stream.
type StreamSettings struct {
	Endpoint      string `yaml:"endpoint"`
	BackfillLimit int    `yaml:"backfill_limit"`
	RetryBaseMS   int    `yaml:"retry_base_ms"`
	RetryMaxMS    int    `yaml:"retry_max_ms"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

// SecuritySettings defines guardrail behavior.
type SecuritySettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// ServerSettings configures `shai serve`.
type ServerSettings struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit_rps"`
	Burst     int     `yaml:"burst"`
}
