package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PinSet holds hash pins for one descriptor name. In policy documents it
// decodes from either a single string or a list of strings.
type PinSet []string

// Contains reports whether the set holds the normalized pin.
func (p PinSet) Contains(pin string) bool {
	for _, candidate := range p {
		if candidate == pin {
			return true
		}
	}
	return false
}

// Sorted renders the pins as a sorted, comma-separated list.
func (p PinSet) Sorted() string {
	sorted := make([]string, len(p))
	copy(sorted, p)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

// UnmarshalYAML accepts a scalar pin or a sequence of pins.
func (p *PinSet) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*p = PinSet{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*p = PinSet(many)
		return nil
	default:
		return fmt.Errorf("allowlist entry must be a string or list of strings")
	}
}

// UnmarshalJSON accepts a scalar pin or an array of pins.
func (p *PinSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = PinSet{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("allowlist entry must be a string or list of strings")
	}
	*p = PinSet(many)
	return nil
}

// LoadPolicy decodes a JSON or YAML integrity policy and validates it.
func LoadPolicy(data []byte) (*IntegrityPolicy, error) {
	var policy IntegrityPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("decode descriptor policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor policy: %w", err)
	}
	return &policy, nil
}

// LoadPolicyFile reads and validates an integrity policy from disk.
func LoadPolicyFile(path string) (*IntegrityPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor policy: %w", err)
	}
	return LoadPolicy(data)
}

// EvaluateFile loads a JSON descriptor document and evaluates it.
func (c *Checker) EvaluateFile(policy *IntegrityPolicy, path, expectedHash string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read descriptor: %w", err)
	}
	var desc map[string]any
	if err := json.Unmarshal(data, &desc); err != nil {
		return Result{}, fmt.Errorf("descriptor file must deserialize to an object: %w", err)
	}
	return c.Evaluate(policy, desc, expectedHash)
}
