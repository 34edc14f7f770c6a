package domain

import (
	"slices"
	"time"
)

// TurnKind distinguishes the three kinds of user-visible exchange.
type TurnKind string

const (
	TurnUserInput         TurnKind = "UserInput"
	TurnAssistantProposal TurnKind = "AssistantProposal"
	TurnSystemNotice      TurnKind = "SystemNotice"
)

// PipelineState names the states of the command pipeline.
type PipelineState string

const (
	StateIdle                 PipelineState = "Idle"
	StateTranslating          PipelineState = "Translating"
	StateAwaitingConfirmation PipelineState = "AwaitingConfirmation"
	StateReadyToExecute       PipelineState = "ReadyToExecute"
	StateExecuting            PipelineState = "Executing"
	StateSettled              PipelineState = "Settled"
	// StateCancelled is the non-actionable display state of a cancelled proposal.
	StateCancelled PipelineState = "Cancelled"
)

// Terminal reports whether no further transition is possible.
func (s PipelineState) Terminal() bool {
	return s == StateSettled || s == StateCancelled
}

// NoticeKind classifies SystemNotice turns.
type NoticeKind string

const (
	NoticeInfo        NoticeKind = "info"
	NoticeTranslation NoticeKind = "translation_failure"
	NoticeTransport   NoticeKind = "transport_failure"
	NoticePersistence NoticeKind = "persistence_failure"
)

// Proposal is a translated candidate command plus its risk metadata.
type Proposal struct {
	CommandText       string
	Confidence        float64
	Explanation       string
	Risk              RiskLevel
	Warnings          []string
	RequiresElevation bool
}

// ConfirmationState exists only while a proposal waits for the operator.
type ConfirmationState struct {
	Mode              ConfirmationMode
	RequiredLiteral   string
	UserEntry         string
	DiscloseElevation bool
}

// Outcome is the result of actually running a command.
type Outcome struct {
	Output         *string
	Error          *string
	ExitCode       int
	ElapsedSeconds float64
	Success        bool
}

// NewOutcome normalizes an execution result. Success requires exit code zero
// and no error text.
func NewOutcome(result ExecutionResult) Outcome {
	elapsed := result.ElapsedSeconds
	if elapsed < 0 {
		elapsed = 0
	}
	out := Outcome{
		Output:         nonEmpty(result.Output),
		Error:          nonEmpty(result.Error),
		ExitCode:       result.ExitCode,
		ElapsedSeconds: elapsed,
	}
	out.Success = out.ExitCode == 0 && out.Error == nil
	return out
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Turn is one user-visible exchange in a session.
type Turn struct {
	ID        string
	Kind      TurnKind
	Text      string
	CreatedAt time.Time

	// Intent is the UserInput text a proposal answers.
	Intent       string
	State        PipelineState
	Proposal     *Proposal
	Confirmation *ConfirmationState
	Outcome      *Outcome
	// HistoryID is set once the outcome has been persisted.
	HistoryID string

	Notice NoticeKind
	// RelatesTo points a notice at the turn it describes.
	RelatesTo string
}

// Actionable reports whether the turn still waits for the operator.
func (t Turn) Actionable() bool {
	return t.Kind == TurnAssistantProposal && t.State == StateAwaitingConfirmation
}

// Clone returns a deep copy safe to hand outside the owning session.
func (t Turn) Clone() Turn {
	out := t
	if t.Proposal != nil {
		p := *t.Proposal
		p.Warnings = slices.Clone(t.Proposal.Warnings)
		out.Proposal = &p
	}
	if t.Confirmation != nil {
		c := *t.Confirmation
		out.Confirmation = &c
	}
	if t.Outcome != nil {
		o := *t.Outcome
		out.Outcome = &o
	}
	return out
}
