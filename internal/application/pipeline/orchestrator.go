// Package pipeline drives one interactive session through
// translate → confirm → execute → record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// executionGrace is added to the service-side timeout before the client gives up.
const executionGrace = 5 * time.Second

// Config carries the orchestrator's collaborators and limits.
type Config struct {
	Translator ports.Translator
	Executor   ports.ExecutionService
	Recorder   *Recorder
	Logger     ports.Logger

	Timeout      time.Duration
	ContextTurns int
	MaxTurns     int

	Now   func() time.Time
	NewID func() string
}

// Orchestrator is the session-scoped command pipeline. At most one turn is
// translating or executing at a time; overlapping calls fail with ErrBusy.
type Orchestrator struct {
	translator   ports.Translator
	executor     ports.ExecutionService
	recorder     *Recorder
	logger       ports.Logger
	timeout      time.Duration
	contextTurns int
	now          func() time.Time
	newID        func() string

	mu       sync.Mutex
	session  *session
	inFlight domain.PipelineState
}

// New validates cfg and starts a fresh session.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Translator == nil || cfg.Executor == nil || cfg.Recorder == nil || cfg.Logger == nil {
		return nil, errors.New("pipeline.Orchestrator dependencies not satisfied")
	}
	o := &Orchestrator{
		translator:   cfg.Translator,
		executor:     cfg.Executor,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		timeout:      cfg.Timeout,
		contextTurns: cfg.ContextTurns,
		now:          cfg.Now,
		newID:        cfg.NewID,
		session:      newSession(cfg.MaxTurns),
		inFlight:     domain.StateIdle,
	}
	if o.timeout <= 0 {
		o.timeout = domain.DefaultExecutionTimeout
	}
	if o.contextTurns <= 0 {
		o.contextTurns = domain.DefaultContextTurns
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return o, nil
}

// SessionID returns the current session token.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.id
}

// State reports the session-level pipeline state.
func (o *Orchestrator) State() domain.PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight != domain.StateIdle {
		return o.inFlight
	}
	if o.session.hasPending() {
		return domain.StateAwaitingConfirmation
	}
	return domain.StateIdle
}

// Turns returns a copy of the session's turns in append order.
func (o *Orchestrator) Turns() []domain.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.snapshot()
}

// Turn returns a copy of a single turn.
func (o *Orchestrator) Turn(id string) (domain.Turn, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t := o.session.find(id); t != nil {
		return t.Clone(), true
	}
	return domain.Turn{}, false
}

// SubmitIntent translates text into a proposal. Low-risk proposals run
// immediately; others wait for Confirm or Cancel. Translation and transport
// failures are returned together with the notice turn describing them.
func (o *Orchestrator) SubmitIntent(ctx context.Context, text string) (domain.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Turn{}, domain.NewError(domain.KindValidation, "submit intent", domain.ErrEmptyIntent)
	}

	o.mu.Lock()
	if err := o.claimLocked(domain.StateTranslating, "submit intent"); err != nil {
		o.mu.Unlock()
		return domain.Turn{}, err
	}
	req := domain.TranslationRequest{Text: text, Context: o.session.recent(o.contextTurns)}
	user := o.appendLocked(&domain.Turn{Kind: domain.TurnUserInput, Text: text})
	sessionID := o.session.id
	o.mu.Unlock()

	o.logger.Info("translating intent", map[string]interface{}{
		"session": sessionID,
		"turn":    user.ID,
	})

	translation, err := o.translator.Translate(ctx, req)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.inFlight = domain.StateIdle
		notice := o.noticeLocked(domain.NoticeTranslation, user.ID, fmt.Sprintf("Translation failed: %v", err))
		o.logger.Warn("translation failed", map[string]interface{}{"turn": user.ID, "error": err.Error()})
		return notice.Clone(), domain.NewError(domain.KindTranslation, "translate intent", err)
	}

	return o.propose(ctx, text, translation.Proposal())
}

// Resubmit re-enters the pipeline with an already translated command, skipping
// translation. The command still passes the risk policy for risk.
func (o *Orchestrator) Resubmit(ctx context.Context, intent, command string, risk domain.RiskLevel) (domain.Turn, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return domain.Turn{}, domain.NewError(domain.KindValidation, "resubmit", errors.New("command text is empty"))
	}
	if strings.TrimSpace(intent) == "" {
		intent = command
	}

	o.mu.Lock()
	if err := o.claimLocked(domain.StateReadyToExecute, "resubmit"); err != nil {
		o.mu.Unlock()
		return domain.Turn{}, err
	}
	o.appendLocked(&domain.Turn{Kind: domain.TurnUserInput, Text: intent})
	o.mu.Unlock()

	return o.propose(ctx, intent, domain.Proposal{
		CommandText: command,
		Confidence:  1,
		Explanation: "Re-running a command from history",
		Risk:        risk,
	})
}

// propose appends the proposal turn and applies the risk policy. The caller
// holds the in-flight claim; propose releases it or turns it into Executing.
func (o *Orchestrator) propose(ctx context.Context, intent string, proposal domain.Proposal) (domain.Turn, error) {
	policy := domain.PolicyFor(proposal.Risk, proposal.RequiresElevation)

	o.mu.Lock()
	text := proposal.Explanation
	if text == "" {
		text = proposal.CommandText
	}
	turn := o.appendLocked(&domain.Turn{
		Kind:     domain.TurnAssistantProposal,
		Text:     text,
		Intent:   intent,
		Proposal: &proposal,
	})

	if policy.RequiresConfirmation() {
		turn.State = domain.StateAwaitingConfirmation
		turn.Confirmation = &domain.ConfirmationState{
			Mode:              policy.Mode,
			RequiredLiteral:   policy.RequiredLiteral,
			DiscloseElevation: policy.DiscloseElevation,
		}
		o.inFlight = domain.StateIdle
		out := turn.Clone()
		o.mu.Unlock()
		o.logger.Info("awaiting confirmation", map[string]interface{}{
			"turn": out.ID,
			"risk": string(proposal.Risk),
			"mode": string(policy.Mode),
		})
		return out, nil
	}

	turn.State = domain.StateReadyToExecute
	o.startLocked(turn)
	out := turn.Clone()
	o.mu.Unlock()
	return o.run(ctx, out)
}

// Confirm releases a proposal waiting for the operator. Under ExactTextConfirm
// the entered text must equal the required literal exactly; anything else
// leaves the turn untouched.
func (o *Orchestrator) Confirm(ctx context.Context, turnID, enteredText string) (domain.Turn, error) {
	o.mu.Lock()
	turn := o.session.find(turnID)
	if turn == nil {
		o.mu.Unlock()
		return domain.Turn{}, domain.NewError(domain.KindNotFound, "confirm", domain.ErrTurnNotFound)
	}
	if turn.State != domain.StateAwaitingConfirmation || turn.Confirmation == nil {
		o.mu.Unlock()
		return domain.Turn{}, domain.NewError(domain.KindInvalidState, "confirm", domain.ErrNotAwaitingConfirmation)
	}
	if turn.Confirmation.Mode == domain.ConfirmExactText && enteredText != turn.Confirmation.RequiredLiteral {
		out := turn.Clone()
		o.mu.Unlock()
		return out, domain.NewError(domain.KindValidation, "confirm", domain.ErrConfirmationMismatch)
	}
	if err := o.claimLocked(domain.StateExecuting, "confirm"); err != nil {
		o.mu.Unlock()
		return domain.Turn{}, err
	}

	turn.Confirmation = nil
	turn.State = domain.StateReadyToExecute
	o.startLocked(turn)
	out := turn.Clone()
	o.mu.Unlock()

	o.logger.Info("proposal confirmed", map[string]interface{}{"turn": turnID})
	return o.run(ctx, out)
}

// Cancel discards a pending confirmation. The turn never gets an outcome.
func (o *Orchestrator) Cancel(turnID string) (domain.Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	turn := o.session.find(turnID)
	if turn == nil {
		return domain.Turn{}, domain.NewError(domain.KindNotFound, "cancel", domain.ErrTurnNotFound)
	}
	if turn.State != domain.StateAwaitingConfirmation {
		return domain.Turn{}, domain.NewError(domain.KindInvalidState, "cancel", domain.ErrNotAwaitingConfirmation)
	}
	turn.Confirmation = nil
	turn.State = domain.StateCancelled

	o.logger.Info("proposal cancelled", map[string]interface{}{"turn": turnID})
	return turn.Clone(), nil
}

// Execute runs a turn that is ReadyToExecute. SubmitIntent and Confirm call it
// implicitly; it is exported for surfaces that split the two steps.
func (o *Orchestrator) Execute(ctx context.Context, turnID string) (domain.Turn, error) {
	o.mu.Lock()
	turn := o.session.find(turnID)
	if turn == nil {
		o.mu.Unlock()
		return domain.Turn{}, domain.NewError(domain.KindNotFound, "execute", domain.ErrTurnNotFound)
	}
	if turn.State != domain.StateReadyToExecute {
		o.mu.Unlock()
		return domain.Turn{}, domain.NewError(domain.KindInvalidState, "execute", domain.ErrNotReadyToExecute)
	}
	if err := o.claimLocked(domain.StateExecuting, "execute"); err != nil {
		o.mu.Unlock()
		return domain.Turn{}, err
	}
	o.startLocked(turn)
	out := turn.Clone()
	o.mu.Unlock()
	return o.run(ctx, out)
}

// run calls the execution service for a turn already marked Executing, then
// settles it. Once dispatched an execution cannot be cancelled by the operator.
func (o *Orchestrator) run(ctx context.Context, turn domain.Turn) (domain.Turn, error) {
	defer o.release()

	command := turn.Proposal.CommandText
	o.logger.Info("executing command", map[string]interface{}{
		"turn":    turn.ID,
		"command": command,
		"timeout": o.timeout.String(),
	})

	execCtx, cancel := context.WithTimeout(ctx, o.timeout+executionGrace)
	defer cancel()

	result, err := o.executor.Execute(execCtx, domain.ExecutionRequest{Command: command, Timeout: o.timeout})
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if t := o.session.find(turn.ID); t != nil {
			t.State = domain.StateSettled
		}
		notice := o.noticeLocked(domain.NoticeTransport, turn.ID, fmt.Sprintf("Execution failed before the command completed: %v", err))
		o.logger.Error("execution transport failure", err, map[string]interface{}{"turn": turn.ID})
		return notice.Clone(), domain.NewError(domain.KindTransport, "execute", err)
	}

	outcome := domain.NewOutcome(result)

	o.mu.Lock()
	t := o.session.find(turn.ID)
	if t == nil {
		// trimmed away while running; keep the local copy authoritative
		t = &turn
	}
	t.Outcome = &outcome
	t.State = domain.StateSettled
	settled := t.Clone()
	sessionID := o.session.id
	o.mu.Unlock()

	o.logger.Info("command settled", map[string]interface{}{
		"turn":    turn.ID,
		"success": outcome.Success,
		"elapsed": outcome.ElapsedSeconds,
	})

	rec, recErr := o.recorder.Record(ctx, sessionID, settled)

	o.mu.Lock()
	defer o.mu.Unlock()
	if recErr != nil {
		o.noticeLocked(domain.NoticePersistence, turn.ID, fmt.Sprintf("The result is shown but could not be saved to history: %v", recErr))
		return settled, nil
	}
	if t := o.session.find(turn.ID); t != nil {
		t.HistoryID = rec.ID
		settled = t.Clone()
	}
	return settled, nil
}

// Clear drops every turn and issues a new session id.
func (o *Orchestrator) Clear() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight != domain.StateIdle {
		return "", domain.NewError(domain.KindBusy, "clear session", domain.ErrBusy)
	}
	o.session.reset()
	o.logger.Info("session cleared", map[string]interface{}{"session": o.session.id})
	return o.session.id, nil
}

func (o *Orchestrator) claimLocked(state domain.PipelineState, op string) error {
	if o.inFlight != domain.StateIdle {
		o.logger.Warn("rejected while busy", map[string]interface{}{
			"op":       op,
			"inFlight": string(o.inFlight),
		})
		return domain.NewError(domain.KindBusy, op, domain.ErrBusy)
	}
	o.inFlight = state
	return nil
}

func (o *Orchestrator) startLocked(turn *domain.Turn) {
	turn.State = domain.StateExecuting
	o.inFlight = domain.StateExecuting
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = domain.StateIdle
}

func (o *Orchestrator) appendLocked(turn *domain.Turn) *domain.Turn {
	turn.ID = o.newID()
	turn.CreatedAt = o.now()
	o.session.append(turn)
	return turn
}

func (o *Orchestrator) noticeLocked(kind domain.NoticeKind, relatesTo, text string) *domain.Turn {
	return o.appendLocked(&domain.Turn{
		Kind:      domain.TurnSystemNotice,
		Text:      text,
		Notice:    kind,
		RelatesTo: relatesTo,
	})
}
