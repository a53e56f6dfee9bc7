package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig decodes a JSON or YAML policy document and validates it.
// YAML is a superset of JSON, so one decoder serves both encodings.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode policy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFile reads and validates a policy document from disk.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy config: %w", err)
	}
	return LoadConfig(data)
}
