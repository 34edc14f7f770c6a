package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/pkg/filesystem"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Guardrail implements the SecurityService port.
type Guardrail struct {
	patterns  []compiledPattern
	whitelist []string
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
		// Whitelist holds command prefixes that are never flagged.
		Whitelist []string `yaml:"whitelist"`
	} `yaml:"rules"`
}

// NewGuardrail loads guardrail rules from disk (or defaults when missing).
func NewGuardrail(path string) (*Guardrail, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}
	return compile(rules)
}

// NewDefaultGuardrail uses the built-in rule set.
func NewDefaultGuardrail() *Guardrail {
	var rules RulesFile
	rules.Rules.DangerPatterns = DefaultPatterns()
	g, err := compile(rules)
	if err != nil {
		// the built-in patterns are constants
		panic(err)
	}
	return g
}

func compile(rules RulesFile) (*Guardrail, error) {
	var compiled []compiledPattern
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling guardrail pattern %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}
	return &Guardrail{patterns: compiled, whitelist: rules.Rules.Whitelist}, nil
}

// Evaluate implements ports.SecurityService. Rule levels that do not parse
// count as critical.
func (g *Guardrail) Evaluate(command string) (domain.RiskAssessment, error) {
	if g == nil {
		return domain.RiskAssessment{}, errors.New("guardrail nil")
	}
	assessment := domain.RiskAssessment{Level: domain.RiskSafe}
	trimmed := strings.TrimSpace(command)
	for _, prefix := range g.whitelist {
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			return assessment, nil
		}
	}
	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(command) {
			continue
		}
		assessment.Level = domain.MaxRisk(assessment.Level, domain.ParseRiskLevel(pattern.rule.Level))
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}
	return assessment, nil
}

func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		// fall back to defaults
		rules.Rules.DangerPatterns = DefaultPatterns()
		return rules, nil
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parsing guardrail rules: %w", err)
	}
	if len(rules.Rules.DangerPatterns) == 0 {
		rules.Rules.DangerPatterns = DefaultPatterns()
	}
	return rules, nil
}

func expandPath(path string) string {
	if path == "" {
		return filesystem.StatePath("guardrail.yaml")
	}
	if expanded := filesystem.ExpandHome(path); filepath.IsAbs(expanded) {
		return expanded
	}
	// bare relative names resolve against the home directory
	return filepath.Join(filesystem.UserHomeDir(), path)
}

// DefaultPatterns is the built-in rule set written to new guardrail files.
func DefaultPatterns() []DangerPattern {
	return []DangerPattern{
		{Pattern: `rm\s+-rf\s+/`, Level: "critical", Message: "Deleting root directory"},
		{Pattern: `rm\s+-rf\s+\*`, Level: "critical", Message: "Recursive delete everything"},
		{Pattern: `dd\s+if=`, Level: "critical", Message: "Raw disk writing"},
		{Pattern: `mkfs\.`, Level: "critical", Message: "Formatting filesystem"},
		{Pattern: `> /dev/(sd[a-z]|nvme)`, Level: "critical", Message: "Writing to block device"},
		{Pattern: `chmod\s+777`, Level: "medium", Message: "Overly permissive chmod"},
		{Pattern: `curl.*\|\s*sudo`, Level: "high", Message: "Piping remote script to sudo"},
		{Pattern: `rm\s+-rf\s+\$HOME`, Level: "high", Message: "Deleting home directory"},
		{Pattern: `(?i)Remove-Item\s+.*-Recurse`, Level: "high", Message: "Recursive PowerShell delete"},
		{Pattern: `:\(\)\{ :\|:& \};:`, Level: "critical", Message: "Fork bomb"},
	}
}

var _ ports.SecurityService = (*Guardrail)(nil)
