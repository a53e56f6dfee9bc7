package policy

import (
	"errors"
	"testing"

	"github.com/action-gate/actiongate/internal/domain/action"
)

func TestPresetRegistry_List(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	metas := reg.List()

	want := []string{"fintech", "games", "startup"}
	if len(metas) != len(want) {
		t.Fatalf("List() returned %d presets, want %d", len(metas), len(want))
	}
	for i, id := range want {
		if metas[i].ID != id {
			t.Errorf("List()[%d].ID = %q, want %q", i, metas[i].ID, id)
		}
		if metas[i].Name == "" || metas[i].Description == "" {
			t.Errorf("preset %q has empty metadata", id)
		}
	}
}

func TestPresetRegistry_UnknownID(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	_, err := reg.Get("enterprise")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Get(enterprise) error = %v, want ErrUnknownPreset", err)
	}
	_, err = reg.Metadata("enterprise")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Metadata(enterprise) error = %v, want ErrUnknownPreset", err)
	}
}

func TestPresets_DenySecretsEverywhere(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	for _, id := range []string{"startup", "fintech", "games"} {
		cfg, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", id, err)
		}
		res := NewEvaluator(cfg).Evaluate(Input{
			ActionType: action.TypeFileWrite,
			Target:     ".env.production",
			Risk:       action.RiskLow,
		})
		if res.Decision != DecisionDeny {
			t.Errorf("preset %s: Decision = %s for .env target, want deny", id, res.Decision)
		}
		if res.Matched == nil || res.Matched.ID != "deny-secrets-and-keys" {
			t.Errorf("preset %s: Matched = %+v, want deny-secrets-and-keys", id, res.Matched)
		}
	}
}

func TestPresetFintech_DeniesCriticalRisk(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	cfg, err := reg.Get("fintech")
	if err != nil {
		t.Fatalf("Get(fintech) error: %v", err)
	}
	res := NewEvaluator(cfg).Evaluate(Input{
		ActionType: action.TypeAPICall,
		Target:     "https://api.payments.example/refunds",
		Risk:       action.RiskCritical,
	})
	if res.Decision != DecisionDeny {
		t.Errorf("Decision = %s, want deny", res.Decision)
	}
	if res.Matched == nil || res.Matched.ID != "deny-critical-risk" {
		t.Errorf("Matched = %+v, want deny-critical-risk", res.Matched)
	}
}

func TestPresetGames_AllowsAssets(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	cfg, err := reg.Get("games")
	if err != nil {
		t.Fatalf("Get(games) error: %v", err)
	}
	res := NewEvaluator(cfg).Evaluate(Input{
		ActionType: action.TypeFileWrite,
		Target:     "assets/hero.png",
		Risk:       action.RiskMedium,
	})
	if res.Decision != DecisionAllow {
		t.Errorf("Decision = %s, want allow", res.Decision)
	}
	if res.Matched == nil || res.Matched.ID != "allow-assets-and-docs-low-medium" {
		t.Errorf("Matched = %+v, want allow-assets-and-docs-low-medium", res.Matched)
	}
}

func TestPresetStartup_ShellNeedsApproval(t *testing.T) {
	t.Parallel()

	reg := NewPresetRegistry()
	cfg, err := reg.Get("startup")
	if err != nil {
		t.Fatalf("Get(startup) error: %v", err)
	}
	res := NewEvaluator(cfg).Evaluate(Input{
		ActionType: action.TypeShellCommand,
		Target:     "rm -rf ./build",
		Risk:       action.RiskHigh,
	})
	if res.Decision != DecisionRequireApproval {
		t.Errorf("Decision = %s, want require_approval", res.Decision)
	}
}
