package domain

import "strings"

// RiskLevel enumerates the ordinal risk classification of a proposed command.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskSafe:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel normalizes free-form input. Unknown values map to critical.
func ParseRiskLevel(value string) RiskLevel {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := riskOrder[level]; ok {
		return level
	}
	return RiskCritical
}

// Known reports whether the level is one of the five recognized values.
func (r RiskLevel) Known() bool {
	_, ok := riskOrder[r]
	return ok
}

// Severity returns the ordinal rank of the level; unknown levels rank as critical.
func (r RiskLevel) Severity() int {
	if rank, ok := riskOrder[r]; ok {
		return rank
	}
	return riskOrder[RiskCritical]
}

// MoreSevere reports whether r ranks strictly above other.
func (r RiskLevel) MoreSevere(other RiskLevel) bool {
	return r.Severity() > other.Severity()
}

// MaxRisk returns the stricter of two levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.MoreSevere(a) {
		return b
	}
	if !a.Known() {
		return RiskCritical
	}
	return a
}

// RiskAssessment aggregates guardrail evaluation data.
type RiskAssessment struct {
	Level        RiskLevel
	Reasons      []string
	MatchedRules []string
}
