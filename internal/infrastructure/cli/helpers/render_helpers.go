package helpers

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/doeshing/shai-ops/internal/application/history"
	"github.com/doeshing/shai-ops/internal/domain"
)

// RenderTurn prints a proposal or notice turn in an ASCII-only format.
func RenderTurn(out io.Writer, turn domain.Turn) {
	switch turn.Kind {
	case domain.TurnSystemNotice:
		fmt.Fprintf(out, "! %s\n", turn.Text)
	case domain.TurnAssistantProposal:
		RenderProposal(out, turn)
		if turn.State == domain.StateCancelled {
			fmt.Fprintln(out, "\nCancelled, command was not executed.")
		}
		if turn.Outcome != nil {
			RenderOutcome(out, *turn.Outcome)
		}
	default:
		fmt.Fprintf(out, "> %s\n", turn.Text)
	}
}

// RenderProposal prints the command with its risk and warnings.
func RenderProposal(out io.Writer, turn domain.Turn) {
	p := turn.Proposal
	if p == nil {
		return
	}
	fmt.Fprintln(out, "Generated Command:")
	fmt.Fprintf(out, "  %s\n", p.CommandText)
	fmt.Fprintf(out, "\nRisk: %s (confidence %.0f%%)\n", strings.ToUpper(string(p.Risk)), p.Confidence*100)
	if p.Explanation != "" {
		fmt.Fprintf(out, "%s\n", p.Explanation)
	}
	PrintWarnings(out, p.Warnings)
}

// RenderOutcome prints the execution result.
func RenderOutcome(out io.Writer, o domain.Outcome) {
	if o.Success {
		fmt.Fprintf(out, "\nCommand executed successfully (%.2fs).\n", o.ElapsedSeconds)
	} else {
		fmt.Fprintf(out, "\nCommand failed with exit code %d (%.2fs).\n", o.ExitCode, o.ElapsedSeconds)
	}
	if o.Output != nil {
		fmt.Fprintln(out, "\noutput:")
		fmt.Fprintln(out, *o.Output)
	}
	if o.Error != nil {
		fmt.Fprintln(out, "\nerror:")
		fmt.Fprintln(out, *o.Error)
	}
}

// RenderHistoryGroups prints records bucketed by recency.
func RenderHistoryGroups(out io.Writer, groups []history.Group) {
	for _, group := range groups {
		fmt.Fprintf(out, "%s\n", group.Label)
		for _, rec := range group.Items {
			RenderHistoryRecord(out, rec)
		}
	}
}

// RenderHistoryRecord prints one history line.
func RenderHistoryRecord(out io.Writer, rec domain.HistoryRecord) {
	status := "ok"
	if !rec.Success {
		status = "fail"
	}
	fmt.Fprintf(out, "  %s | %s | %-4s | %s\n",
		rec.Timestamp.Local().Format(time.DateTime),
		rec.ID,
		status,
		rec.Command)
}

// RenderLogRecord prints one log line.
func RenderLogRecord(out io.Writer, rec domain.LogRecord) {
	fmt.Fprintf(out, "%s %-8s [%s] %s\n",
		rec.Timestamp.Local().Format("15:04:05.000"),
		rec.Level,
		rec.Source,
		rec.Message)
}
