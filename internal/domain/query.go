package domain

import "time"

// TranslationRequest is sent to the translation service.
type TranslationRequest struct {
	Text        string
	Context     []ContextTurn
	Environment *Environment
}

// Environment describes where a command will run.
type Environment struct {
	WorkingDir string   `json:"workingDir"`
	Shell      string   `json:"shell"`
	OS         string   `json:"os"`
	User       string   `json:"user,omitempty"`
	Tools      []string `json:"tools,omitempty"`
	GitBranch  string   `json:"gitBranch,omitempty"`
	Files      []string `json:"files,omitempty"`
}

// ContextTurn is the slice of a recent turn handed to the translator as context.
type ContextTurn struct {
	Kind    TurnKind `json:"kind"`
	Text    string   `json:"text"`
	Command string   `json:"command,omitempty"`
}

// Translation is the translation service's answer.
type Translation struct {
	Command           string
	Confidence        float64
	Explanation       string
	Risk              RiskLevel
	Warnings          []string
	RequiresElevation bool
}

// Proposal converts the translation into an immutable proposal. Confidence is
// clamped into [0,1] and unknown risk values become critical.
func (t Translation) Proposal() Proposal {
	confidence := t.Confidence
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return Proposal{
		CommandText:       t.Command,
		Confidence:        confidence,
		Explanation:       t.Explanation,
		Risk:              ParseRiskLevel(string(t.Risk)),
		Warnings:          append([]string(nil), t.Warnings...),
		RequiresElevation: t.RequiresElevation,
	}
}

// ExecutionRequest is sent to the execution service.
type ExecutionRequest struct {
	Command string
	Timeout time.Duration
}

// ExecutionResult wraps the execution service's answer for a command that ran.
type ExecutionResult struct {
	Output         string
	Error          string
	ExitCode       int
	ElapsedSeconds float64
}
