package action

import (
	"context"
	"testing"
)

func TestHeuristicAnalyzer_RiskByActionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		req            Request
		wantRisk       RiskLevel
		wantReversible bool
	}{
		{
			name:           "doc write is low",
			req:            Request{Type: TypeFileWrite, Description: "d", Target: "docs/guide.md"},
			wantRisk:       RiskLow,
			wantReversible: true,
		},
		{
			name:           "asset write is low",
			req:            Request{Type: TypeFileWrite, Description: "d", Target: "assets/hero.png"},
			wantRisk:       RiskLow,
			wantReversible: true,
		},
		{
			name:           "source write is medium",
			req:            Request{Type: TypeFileWrite, Description: "d", Target: "src/main.go"},
			wantRisk:       RiskMedium,
			wantReversible: true,
		},
		{
			name:           "delete is high and irreversible",
			req:            Request{Type: TypeFileDelete, Description: "d", Target: "src/old.go"},
			wantRisk:       RiskHigh,
			wantReversible: false,
		},
		{
			name:           "env target is critical",
			req:            Request{Type: TypeFileWrite, Description: "d", Target: ".env.production"},
			wantRisk:       RiskCritical,
			wantReversible: true,
		},
		{
			name:           "destructive shell is critical",
			req:            Request{Type: TypeShellCommand, Description: "d", Target: "rm -rf /var/data"},
			wantRisk:       RiskCritical,
			wantReversible: false,
		},
		{
			name:           "plain shell is high",
			req:            Request{Type: TypeShellCommand, Description: "d", Target: "make build"},
			wantRisk:       RiskHigh,
			wantReversible: false,
		},
	}

	analyzer := NewHeuristicAnalyzer(".")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			preview, err := analyzer.Analyze(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if preview.Risk != tt.wantRisk {
				t.Errorf("Analyze() risk = %v, want %v", preview.Risk, tt.wantRisk)
			}
			if preview.Reversible != tt.wantReversible {
				t.Errorf("Analyze() reversible = %v, want %v", preview.Reversible, tt.wantReversible)
			}
		})
	}
}

func TestHeuristicAnalyzer_Deterministic(t *testing.T) {
	t.Parallel()

	analyzer := NewHeuristicAnalyzer(".")
	req := Request{Type: TypeFileDelete, Description: "cleanup", Target: "build/cache"}

	first, err := analyzer.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	second, err := analyzer.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if first.Risk != second.Risk || first.Reversible != second.Reversible ||
		len(first.RiskFactors) != len(second.RiskFactors) {
		t.Errorf("Analyze() not deterministic: %+v vs %+v", first, second)
	}
}

func TestHeuristicAnalyzer_FileChangePreview(t *testing.T) {
	t.Parallel()

	analyzer := NewHeuristicAnalyzer(".")
	preview, err := analyzer.Analyze(context.Background(), Request{
		Type: TypeFileDelete, Description: "d", Target: "tmp/scratch.txt",
	})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(preview.FileChanges) != 1 {
		t.Fatalf("Analyze() file changes = %d, want 1", len(preview.FileChanges))
	}
	fc := preview.FileChanges[0]
	if fc.Path != "tmp/scratch.txt" || fc.ChangeType != ChangeDelete {
		t.Errorf("Analyze() file change = %+v", fc)
	}
}

func TestHeuristicAnalyzer_RejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	analyzer := NewHeuristicAnalyzer(".")
	_, err := analyzer.Analyze(context.Background(), Request{Type: "warp", Description: "d", Target: "t"})
	if err == nil {
		t.Error("Analyze() accepted unknown action type")
	}
}
