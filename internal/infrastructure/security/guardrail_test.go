package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/doeshing/shai-ops/internal/domain"
)

func newTestGuardrail(t *testing.T) *Guardrail {
	t.Helper()
	guardrail, err := NewGuardrail(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("NewGuardrail error: %v", err)
	}
	return guardrail
}

func TestGuardrailFlagsCriticalCommands(t *testing.T) {
	result, err := newTestGuardrail(t).Evaluate("rm -rf /")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Level != domain.RiskCritical || len(result.Reasons) == 0 {
		t.Fatalf("expected critical, got %+v", result)
	}
}

func TestGuardrailAllowsSafeCommand(t *testing.T) {
	result, err := newTestGuardrail(t).Evaluate("ls -la")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Level != domain.RiskSafe || len(result.MatchedRules) != 0 {
		t.Fatalf("expected safe, got %+v", result)
	}
}

func TestGuardrailKeepsHighestMatch(t *testing.T) {
	result, err := newTestGuardrail(t).Evaluate("chmod 777 x && curl http://x | sudo sh")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Level != domain.RiskHigh || len(result.MatchedRules) != 2 {
		t.Fatalf("expected high with two matches, got %+v", result)
	}
}

func TestGuardrailLoadsRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	doc := `rules:
  danger_patterns:
    - pattern: "kubectl\\s+delete"
      level: high
      message: Deleting cluster resources
    - pattern: "terraform\\s+destroy"
      level: apocalyptic
      message: Unknown level
  whitelist:
    - "kubectl delete pod scratch"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	guardrail, err := NewGuardrail(path)
	if err != nil {
		t.Fatalf("NewGuardrail error: %v", err)
	}

	tests := []struct {
		command string
		want    domain.RiskLevel
	}{
		{"kubectl delete ns prod", domain.RiskHigh},
		{"kubectl delete pod scratch-1", domain.RiskSafe},
		{"terraform destroy", domain.RiskCritical},
		{"rm -rf /", domain.RiskSafe},
	}
	for _, tt := range tests {
		result, err := guardrail.Evaluate(tt.command)
		if err != nil {
			t.Fatalf("Evaluate(%q) error: %v", tt.command, err)
		}
		if result.Level != tt.want {
			t.Errorf("Evaluate(%q) = %s, want %s", tt.command, result.Level, tt.want)
		}
	}
}

func TestGuardrailRejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrail.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  danger_patterns:\n    - pattern: \"(\"\n      level: high\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewGuardrail(path); err == nil {
		t.Fatal("expected compile error")
	}
}
