package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Pipeline is the part of the orchestrator a terminal surface drives after a
// proposal has been produced.
type Pipeline interface {
	Confirm(ctx context.Context, turnID, enteredText string) (domain.Turn, error)
	Cancel(turnID string) (domain.Turn, error)
	Turns() []domain.Turn
}

// SettleTurn renders the result of a submit. A proposal that waits for the
// operator is confirmed or cancelled through prompter. A mistyped confirmation
// cancels the proposal without error.
func SettleTurn(ctx context.Context, out io.Writer, p Pipeline, prompter ports.ConfirmationPrompter, turn domain.Turn, err error) (domain.Turn, error) {
	if err != nil {
		if turn.Kind == domain.TurnSystemNotice {
			RenderTurn(out, turn)
		}
		return turn, err
	}

	RenderTurn(out, turn)
	if !turn.Actionable() {
		renderRelatedNotices(out, p, turn.ID)
		return turn, nil
	}

	if prompter == nil || !prompter.Enabled() {
		fmt.Fprintln(out, "\nConfirmation required but no interactive terminal is available.")
		return cancel(out, p, turn)
	}

	entered, proceed, perr := prompter.Confirm(turn)
	if perr != nil {
		if _, cerr := p.Cancel(turn.ID); cerr != nil {
			return turn, errors.Join(perr, cerr)
		}
		return turn, perr
	}
	if !proceed {
		return cancel(out, p, turn)
	}

	settled, err := p.Confirm(ctx, turn.ID, entered)
	if errors.Is(err, domain.ErrConfirmationMismatch) {
		fmt.Fprintln(out, "\nConfirmation text did not match.")
		return cancel(out, p, turn)
	}
	if err != nil {
		if settled.Kind == domain.TurnSystemNotice {
			RenderTurn(out, settled)
		}
		return settled, err
	}
	if settled.Outcome != nil {
		RenderOutcome(out, *settled.Outcome)
	}
	renderRelatedNotices(out, p, settled.ID)
	return settled, nil
}

func cancel(out io.Writer, p Pipeline, turn domain.Turn) (domain.Turn, error) {
	cancelled, err := p.Cancel(turn.ID)
	if err != nil {
		return turn, err
	}
	fmt.Fprintln(out, "Cancelled, command was not executed.")
	return cancelled, nil
}

// renderRelatedNotices prints notices attached to a settled turn, such as a
// failed history write.
func renderRelatedNotices(out io.Writer, p Pipeline, turnID string) {
	for _, t := range p.Turns() {
		if t.Kind == domain.TurnSystemNotice && t.RelatesTo == turnID {
			RenderTurn(out, t)
		}
	}
}
