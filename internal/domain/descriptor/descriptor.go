// Package descriptor verifies tool descriptor integrity with SHA-256
// hash pinning and a per-name allowlist. Hashing runs over the canonical
// JSON form, so key order in the source document never changes a digest.
package descriptor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/action-gate/actiongate/internal/canonical"
)

var hexDigestRE = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NormalizePin validates a hash pin and renders it as "sha256:<hex>",
// lowercased, with or without the prefix on input.
func NormalizePin(pin string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(pin))
	value = strings.TrimPrefix(value, canonical.HashPrefix)
	if !hexDigestRE.MatchString(value) {
		return "", fmt.Errorf("invalid hash pin %q: expected a 64-character SHA-256 hex digest", pin)
	}
	return canonical.HashPrefix + value, nil
}

// ComputeHash returns the canonical SHA-256 digest of a descriptor.
// Stable under key reordering of the input map.
func ComputeHash(descriptor map[string]any) (string, error) {
	digest, err := canonical.Digest(descriptor)
	if err != nil {
		return "", fmt.Errorf("hash descriptor: %w", err)
	}
	return digest, nil
}

// IntegrityPolicy controls descriptor verification behavior.
type IntegrityPolicy struct {
	// Allowlist maps descriptor names to their accepted hash pins.
	Allowlist map[string]PinSet `json:"allowlist,omitempty" yaml:"allowlist,omitempty"`
	// FailClosed rejects descriptors when no pin could be validated.
	// Defaults to true.
	FailClosed *bool `json:"fail_closed,omitempty" yaml:"fail_closed,omitempty"`
	// EnforceAllowlist requires every descriptor to match an allowlist
	// pin for its name. Defaults to true.
	EnforceAllowlist *bool `json:"enforce_allowlist,omitempty" yaml:"enforce_allowlist,omitempty"`
}

// IsFailClosed reports the effective fail_closed setting.
func (p *IntegrityPolicy) IsFailClosed() bool {
	return p.FailClosed == nil || *p.FailClosed
}

// IsAllowlistEnforced reports the effective enforce_allowlist setting.
func (p *IntegrityPolicy) IsAllowlistEnforced() bool {
	return p.EnforceAllowlist == nil || *p.EnforceAllowlist
}

// Validate normalizes every allowlist pin and rejects malformed entries.
func (p *IntegrityPolicy) Validate() error {
	for name, pins := range p.Allowlist {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("allowlist descriptor names must be non-empty")
		}
		normalized := make(PinSet, 0, len(pins))
		for _, pin := range pins {
			norm, err := NormalizePin(pin)
			if err != nil {
				return fmt.Errorf("allowlist entry %q: %w", name, err)
			}
			normalized = append(normalized, norm)
		}
		p.Allowlist[name] = normalized
	}
	return nil
}

// pinsFor returns the normalized pins for a descriptor name.
func (p *IntegrityPolicy) pinsFor(name string) PinSet {
	return p.Allowlist[name]
}

// Result is the outcome of one integrity evaluation.
type Result struct {
	Allowed        bool   `json:"allowed"`
	DescriptorName string `json:"descriptor_name,omitempty"`
	DescriptorHash string `json:"descriptor_hash"`
	MatchedPin     string `json:"matched_pin,omitempty"`
	Reason         string `json:"reason"`
}

// Checker evaluates descriptors against an integrity policy.
type Checker struct{}

// NewChecker returns a descriptor integrity checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Evaluate hashes the descriptor and applies, in order: the explicit
// expected pin (when given), the allowlist (when enforced), and the
// fail-closed default. The error path is reserved for structural faults
// (malformed pin, unserializable descriptor); a policy rejection is a
// Result with Allowed=false.
func (c *Checker) Evaluate(policy *IntegrityPolicy, desc map[string]any, expectedHash string) (Result, error) {
	name := descriptorName(desc)
	hash, err := ComputeHash(desc)
	if err != nil {
		return Result{}, err
	}

	expected := ""
	if expectedHash != "" {
		expected, err = NormalizePin(expectedHash)
		if err != nil {
			return Result{}, err
		}
		if hash != expected {
			return Result{
				Allowed:        false,
				DescriptorName: name,
				DescriptorHash: hash,
				Reason:         fmt.Sprintf("Hash pin mismatch: expected %s, got %s", expected, hash),
			}, nil
		}
	}

	if policy.IsAllowlistEnforced() {
		if name == "" {
			return Result{
				Allowed:        false,
				DescriptorHash: hash,
				Reason:         "Descriptor is missing required 'name'; cannot enforce allowlist",
			}, nil
		}
		pins := policy.pinsFor(name)
		if len(pins) == 0 {
			return Result{
				Allowed:        false,
				DescriptorName: name,
				DescriptorHash: hash,
				Reason:         fmt.Sprintf("No allowlist hash pins configured for descriptor %q", name),
			}, nil
		}
		if !pins.Contains(hash) {
			return Result{
				Allowed:        false,
				DescriptorName: name,
				DescriptorHash: hash,
				Reason: fmt.Sprintf("Descriptor hash mismatch for %q: expected one of [%s], got %s",
					name, pins.Sorted(), hash),
			}, nil
		}
		return Result{
			Allowed:        true,
			DescriptorName: name,
			DescriptorHash: hash,
			MatchedPin:     hash,
			Reason:         fmt.Sprintf("Descriptor hash matched allowlist pin for %q", name),
		}, nil
	}

	if expected != "" {
		return Result{
			Allowed:        true,
			DescriptorName: name,
			DescriptorHash: hash,
			MatchedPin:     expected,
			Reason:         "Descriptor hash matched explicit pin",
		}, nil
	}

	if policy.IsFailClosed() {
		return Result{
			Allowed:        false,
			DescriptorName: name,
			DescriptorHash: hash,
			Reason:         "No integrity pin could be validated (allowlist enforcement disabled and no expected hash provided)",
		}, nil
	}

	return Result{
		Allowed:        true,
		DescriptorName: name,
		DescriptorHash: hash,
		Reason:         "Descriptor integrity checks skipped by policy configuration",
	}, nil
}

func descriptorName(desc map[string]any) string {
	raw, _ := desc["name"].(string)
	return strings.TrimSpace(raw)
}
