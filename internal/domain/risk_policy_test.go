package domain_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doeshing/shai-ops/internal/domain"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		risk      domain.RiskLevel
		elevation bool
		wantMode  domain.ConfirmationMode
		literal   string
		disclose  bool
	}{
		{risk: domain.RiskSafe, wantMode: domain.ConfirmNone},
		{risk: domain.RiskLow, wantMode: domain.ConfirmNone},
		{risk: domain.RiskMedium, wantMode: domain.ConfirmSimple},
		{risk: domain.RiskHigh, wantMode: domain.ConfirmExactText, literal: "EXECUTE"},
		{risk: domain.RiskCritical, wantMode: domain.ConfirmExactText, literal: "EXECUTE"},
		{risk: domain.RiskCritical, elevation: true, wantMode: domain.ConfirmExactText, literal: "EXECUTE", disclose: true},
		{risk: domain.RiskLevel("catastrophic"), wantMode: domain.ConfirmExactText, literal: "EXECUTE"},
		{risk: domain.RiskLevel(""), wantMode: domain.ConfirmExactText, literal: "EXECUTE"},
	}

	for _, tt := range tests {
		t.Run(string(tt.risk), func(t *testing.T) {
			got := domain.PolicyFor(tt.risk, tt.elevation)
			if got.Mode != tt.wantMode {
				t.Fatalf("mode = %s, want %s", got.Mode, tt.wantMode)
			}
			if got.RequiredLiteral != tt.literal {
				t.Fatalf("literal = %q, want %q", got.RequiredLiteral, tt.literal)
			}
			if got.DiscloseElevation != tt.disclose {
				t.Fatalf("disclose = %v, want %v", got.DiscloseElevation, tt.disclose)
			}
		})
	}
}

func TestPolicyForIsTotalAndFailClosed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	known := map[string]bool{"safe": true, "low": true, "medium": true}

	properties.Property("unknown risk never auto-proceeds", prop.ForAll(
		func(value string, elevation bool) bool {
			policy := domain.PolicyFor(domain.RiskLevel(value), elevation)
			if known[value] {
				return true
			}
			return policy.Mode == domain.ConfirmExactText && policy.RequiredLiteral == domain.ExecuteLiteral
		},
		gen.AnyString(),
		gen.Bool(),
	))

	properties.Property("policy is deterministic", prop.ForAll(
		func(value string, elevation bool) bool {
			return domain.PolicyFor(domain.RiskLevel(value), elevation) == domain.PolicyFor(domain.RiskLevel(value), elevation)
		},
		gen.OneConstOf("safe", "low", "medium", "high", "critical", "unknown"),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestParseRiskLevel(t *testing.T) {
	cases := map[string]domain.RiskLevel{
		"SAFE":     domain.RiskSafe,
		" low ":    domain.RiskLow,
		"Medium":   domain.RiskMedium,
		"high":     domain.RiskHigh,
		"critical": domain.RiskCritical,
		"whatever": domain.RiskCritical,
	}
	for in, want := range cases {
		if got := domain.ParseRiskLevel(in); got != want {
			t.Errorf("ParseRiskLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestMaxRisk(t *testing.T) {
	if got := domain.MaxRisk(domain.RiskLow, domain.RiskHigh); got != domain.RiskHigh {
		t.Errorf("MaxRisk(low, high) = %s", got)
	}
	if got := domain.MaxRisk(domain.RiskMedium, domain.RiskSafe); got != domain.RiskMedium {
		t.Errorf("MaxRisk(medium, safe) = %s", got)
	}
	if got := domain.MaxRisk(domain.RiskLevel("bogus"), domain.RiskSafe); got != domain.RiskCritical {
		t.Errorf("MaxRisk(bogus, safe) = %s", got)
	}
}

func TestNewOutcome(t *testing.T) {
	ok := domain.NewOutcome(domain.ExecutionResult{Output: "done", ExitCode: 0, ElapsedSeconds: 0.2})
	if !ok.Success || ok.Output == nil || *ok.Output != "done" || ok.Error != nil {
		t.Fatalf("unexpected outcome %+v", ok)
	}

	nonZero := domain.NewOutcome(domain.ExecutionResult{ExitCode: 2})
	if nonZero.Success {
		t.Fatal("non-zero exit must not succeed")
	}

	withError := domain.NewOutcome(domain.ExecutionResult{Error: "boom", ExitCode: 0, ElapsedSeconds: -1})
	if withError.Success {
		t.Fatal("error text must not succeed")
	}
	if withError.ElapsedSeconds != 0 {
		t.Fatalf("elapsed = %v, want clamped to 0", withError.ElapsedSeconds)
	}
}
