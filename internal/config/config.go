// Package config provides configuration loading for Action Gate.
package config

// Config is the root configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	LogLevel string         `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// StoreConfig selects the event store backend.
type StoreConfig struct {
	// Path is the SQLite database file, or ":memory:" for an ephemeral
	// store.
	Path string `mapstructure:"path" validate:"required"`
}

// PolicyConfig selects the policy source: a bundled preset or a file.
type PolicyConfig struct {
	Preset string `mapstructure:"preset" validate:"omitempty,oneof=startup fintech games"`
	File   string `mapstructure:"file"`
}

// ScannerConfig overrides the scanner bounds. Zero values keep defaults.
type ScannerConfig struct {
	MaxTextChars      int `mapstructure:"max_text_chars" validate:"gte=0"`
	MaxPayloadStrings int `mapstructure:"max_payload_strings" validate:"gte=0"`
	MaxPayloadDepth   int `mapstructure:"max_payload_depth" validate:"gte=0"`
}

// AnalyzerConfig configures the impact analyzer.
type AnalyzerConfig struct {
	WorkingDirectory string `mapstructure:"working_directory"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = "action-gate.db"
	}
	if c.Policy.Preset == "" && c.Policy.File == "" {
		c.Policy.Preset = "startup"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
