package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/action-gate/actiongate/internal/domain/action"
)

// ErrUnknownPreset is returned for preset ids the registry does not carry.
var ErrUnknownPreset = errors.New("unknown preset id")

// PresetMetadata describes a bundled preset for selection UIs.
type PresetMetadata struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// preset pairs metadata with its validated config.
type preset struct {
	meta PresetMetadata
	cfg  *Config
}

// PresetRegistry holds the bundled, pre-validated policy configurations.
// It is constructed state, not a package-level singleton: callers own the
// instance and its lifetime.
type PresetRegistry struct {
	presets map[string]preset
}

// NewPresetRegistry builds the registry of bundled presets. The bundled
// configs are code, so a validation failure here is a programming error
// and panics at construction rather than surfacing per-lookup.
func NewPresetRegistry() *PresetRegistry {
	r := &PresetRegistry{presets: make(map[string]preset)}
	r.register(PresetMetadata{
		ID:          "startup",
		Name:        "Startup",
		Description: "Balanced defaults for fast-moving teams with basic safety guardrails.",
		Tags:        []string{"balanced", "general"},
	}, startupPreset())
	r.register(PresetMetadata{
		ID:          "fintech",
		Name:        "Fintech",
		Description: "Stricter defaults for regulated environments (secrets/prod changes).",
		Tags:        []string{"strict", "regulated"},
	}, fintechPreset())
	r.register(PresetMetadata{
		ID:          "games",
		Name:        "Games",
		Description: "Iterative defaults tuned for content/assets heavy workflows.",
		Tags:        []string{"iterative", "content"},
	}, gamesPreset())
	return r
}

func (r *PresetRegistry) register(meta PresetMetadata, cfg *Config) {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("bundled preset %q is invalid: %v", meta.ID, err))
	}
	r.presets[meta.ID] = preset{meta: meta, cfg: cfg}
}

// List returns metadata for every bundled preset, sorted by id.
func (r *PresetRegistry) List() []PresetMetadata {
	out := make([]PresetMetadata, 0, len(r.presets))
	for _, p := range r.presets {
		out = append(out, p.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the validated config for a preset id.
func (r *PresetRegistry) Get(id string) (*Config, error) {
	p, ok := r.presets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPreset, id, r.available())
	}
	return p.cfg, nil
}

// Metadata returns the metadata for a preset id.
func (r *PresetRegistry) Metadata(id string) (PresetMetadata, error) {
	p, ok := r.presets[id]
	if !ok {
		return PresetMetadata{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPreset, id, r.available())
	}
	return p.meta, nil
}

func (r *PresetRegistry) available() string {
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

func intPtr(v int) *int { return &v }

func riskPtr(r action.RiskLevel) *action.RiskLevel { return &r }

// secretTargets flags paths that commonly hold credential material.
var secretTargets = []string{
	".env", ".ssh", "id_rsa", "credentials", "secrets", "password", ".pem",
}

func startupPreset() *Config {
	return &Config{
		Version:  "preset-startup-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{
				ID:             "deny-secrets-and-keys",
				Decision:       DecisionDeny,
				Priority:       intPtr(0),
				TargetContains: secretTargets,
			},
			{
				ID:          "allow-docs-and-tests-low-medium",
				Decision:    DecisionAllow,
				Priority:    intPtr(50),
				ActionTypes: []action.Type{action.TypeFileWrite, action.TypeFileCreate},
				PathGlobs:   []string{"docs/*", "tests/*"},
				MaxRisk:     riskPtr(action.RiskMedium),
			},
			{
				ID:          "require-approval-shell",
				Decision:    DecisionRequireApproval,
				Priority:    intPtr(75),
				ActionTypes: []action.Type{action.TypeShellCommand},
			},
		},
	}
}

func fintechPreset() *Config {
	return &Config{
		Version:  "preset-fintech-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{
				ID:             "deny-secrets-and-keys",
				Decision:       DecisionDeny,
				Priority:       intPtr(0),
				TargetContains: append(append([]string{}, secretTargets...), "api_key", "secret_key"),
			},
			{
				ID:       "deny-critical-risk",
				Decision: DecisionDeny,
				Priority: intPtr(5),
				MinRisk:  riskPtr(action.RiskCritical),
			},
			{
				ID:          "require-approval-db-execute",
				Decision:    DecisionRequireApproval,
				Priority:    intPtr(10),
				ActionTypes: []action.Type{action.TypeDBExecute},
			},
			{
				ID:          "allow-docs-low",
				Decision:    DecisionAllow,
				Priority:    intPtr(50),
				ActionTypes: []action.Type{action.TypeFileWrite, action.TypeFileCreate},
				PathGlobs:   []string{"docs/*"},
				MaxRisk:     riskPtr(action.RiskLow),
			},
		},
	}
}

func gamesPreset() *Config {
	return &Config{
		Version:  "preset-games-1",
		Defaults: Defaults{Decision: DecisionRequireApproval},
		Rules: []Rule{
			{
				ID:             "deny-secrets-and-keys",
				Decision:       DecisionDeny,
				Priority:       intPtr(0),
				TargetContains: secretTargets,
			},
			{
				ID:          "allow-assets-and-docs-low-medium",
				Decision:    DecisionAllow,
				Priority:    intPtr(50),
				ActionTypes: []action.Type{action.TypeFileWrite, action.TypeFileCreate},
				PathGlobs:   []string{"assets/*", "docs/*"},
				MaxRisk:     riskPtr(action.RiskMedium),
			},
			{
				ID:          "allow-tests-low-medium",
				Decision:    DecisionAllow,
				Priority:    intPtr(55),
				ActionTypes: []action.Type{action.TypeFileWrite, action.TypeFileCreate},
				PathGlobs:   []string{"tests/*"},
				MaxRisk:     riskPtr(action.RiskMedium),
			},
		},
	}
}
