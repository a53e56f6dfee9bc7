package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches standard locations for
// action-gate.yaml/.yml; the search requires an explicit YAML extension so
// the binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("action-gate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: ACTION_GATE_STORE_PATH
	viper.SetEnvPrefix("ACTION_GATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".action-gate"),
		"/etc/action-gate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "action-gate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment overrides.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("store.path")
	_ = viper.BindEnv("policy.preset")
	_ = viper.BindEnv("policy.file")
	_ = viper.BindEnv("scanner.max_text_chars")
	_ = viper.BindEnv("scanner.max_payload_strings")
	_ = viper.BindEnv("scanner.max_payload_depth")
	_ = viper.BindEnv("analyzer.working_directory")
	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides
// and defaults, and validates the result. A missing config file is not an
// error; environment-only configuration is supported.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, or ""
// when running on environment variables alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
