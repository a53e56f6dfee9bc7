package action

import "testing"

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "file_write", input: "file_write", want: TypeFileWrite},
		{name: "uppercase normalized", input: "SHELL_COMMAND", want: TypeShellCommand},
		{name: "surrounding space trimmed", input: "  db_execute ", want: TypeDBExecute},
		{name: "unknown rejected", input: "format_disk", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseType(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	t.Parallel()

	ordered := []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Severity() >= ordered[i].Severity() {
			t.Errorf("risk scale out of order: %v >= %v", ordered[i-1], ordered[i])
		}
	}
}

func TestMaxRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b, want RiskLevel
	}{
		{RiskLow, RiskLow, RiskLow},
		{RiskLow, RiskCritical, RiskCritical},
		{RiskHigh, RiskMedium, RiskHigh},
		{RiskMedium, RiskMedium, RiskMedium},
	}
	for _, tt := range tests {
		if got := MaxRisk(tt.a, tt.b); got != tt.want {
			t.Errorf("MaxRisk(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	valid := Request{
		Type:        TypeFileWrite,
		Description: "update readme",
		Target:      "docs/README.md",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid request: %v", err)
	}

	missingTarget := valid
	missingTarget.Target = "  "
	if err := missingTarget.Validate(); err == nil {
		t.Error("Validate() accepted blank target")
	}

	badType := valid
	badType.Type = "telepathy"
	if err := badType.Validate(); err == nil {
		t.Error("Validate() accepted unknown action type")
	}

	negativeTimeout := valid
	negativeTimeout.Options.TimeoutSeconds = -1
	if err := negativeTimeout.Validate(); err == nil {
		t.Error("Validate() accepted negative timeout")
	}

	badCallback := valid
	badCallback.Options.CallbackURL = "not a url"
	if err := badCallback.Validate(); err == nil {
		t.Error("Validate() accepted malformed callback URL")
	}

	goodCallback := valid
	goodCallback.Options.CallbackURL = "https://hooks.example.com/actions"
	if err := goodCallback.Validate(); err != nil {
		t.Errorf("Validate() rejected valid callback URL: %v", err)
	}
}
